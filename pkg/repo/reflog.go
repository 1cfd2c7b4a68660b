package repo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/refs"
)

// ReflogEntry records one movement of a ref.
type ReflogEntry struct {
	Ref       string
	Old       object.Hash
	New       object.Hash
	Timestamp int64
	Reason    string
}

var zeroHash = strings.Repeat("0", 64)

func (r *Repo) reflogPath(ref string) string {
	return filepath.Join(r.MetaDir, "logs", filepath.FromSlash(ref))
}

// appendReflog records a ref movement. The ref update has already happened,
// so a failure here is logged rather than returned.
func (r *Repo) appendReflog(ref string, old, next object.Hash, reason string) {
	if err := r.writeReflog(ref, old, next, reason); err != nil {
		r.Logger.Warn("reflog append failed", zap.String("ref", ref), zap.Error(err))
	}
}

func (r *Repo) writeReflog(ref string, old, next object.Hash, reason string) error {
	logPath := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}
	oldVal, newVal := string(old), string(next)
	if oldVal == "" {
		oldVal = zeroHash
	}
	if newVal == "" {
		newVal = zeroHash
	}
	reason = strings.ReplaceAll(strings.TrimSpace(reason), "\n", " ")
	if reason == "" {
		reason = "update"
	}
	line := fmt.Sprintf("%s %s %d %s\n", oldVal, newVal, r.now().Unix(), reason)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// Reflog returns the movements of ref, newest first. An empty ref or
// "HEAD" means the current branch, or HEAD itself when detached. A limit of
// zero or less returns everything.
func (r *Repo) Reflog(ctx context.Context, ref string, limit int) ([]ReflogEntry, error) {
	name, err := r.reflogRefName(ctx, ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(r.reflogPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:       name,
			Old:       trimZero(parts[0]),
			New:       trimZero(parts[1]),
			Timestamp: ts,
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func trimZero(s string) object.Hash {
	if s == zeroHash {
		return ""
	}
	return object.Hash(s)
}

func (r *Repo) reflogRefName(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "HEAD" {
		head, err := r.Refs.ReadHead(ctx)
		if err != nil {
			return "", fmt.Errorf("read reflog: %w", err)
		}
		if head.Symbolic != "" {
			return head.Symbolic, nil
		}
		return "HEAD", nil
	}
	name := refs.Qualify(ref)
	if err := refs.ValidateName(name); err != nil {
		return "", fmt.Errorf("read reflog: %w", err)
	}
	return name, nil
}
