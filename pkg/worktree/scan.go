package worktree

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// File is a regular file found in a worktree.
type File struct {
	Path    string // slash path relative to the root
	Mode    string
	Size    int64
	ModTime int64
}

// Scan lists the regular files under dir in path order, skipping the
// metadata directory and anything matched by the ignore file.
func Scan(dir string) ([]File, error) {
	ig, err := LoadIgnore(dir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return ScanWith(dir, ig)
}

// ScanWith is Scan with an explicit ignore matcher.
func ScanWith(dir string, ig *Ignore) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == MetaDir || ig.MatchDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ig.Match(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{
			Path:    rel,
			Mode:    ModeFromInfo(info),
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
