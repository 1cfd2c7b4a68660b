package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/graph"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/refs"
	"github.com/odvcencio/arbor/pkg/worktree"
)

// Init creates a repository at path: the .arbor directory with objects/,
// refs/heads/, config.toml and a HEAD pointing at the default branch. It
// fails if .arbor already exists.
func Init(ctx context.Context, path string, opts ...Option) (*Repo, error) {
	o := buildOptions(opts)
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	metaDir := filepath.Join(root, worktree.MetaDir)
	if _, err := os.Stat(metaDir); err == nil {
		return nil, fmt.Errorf("init: %w at %s", ErrAlreadyExists, metaDir)
	}

	cfg := o.config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	for _, d := range []string{
		filepath.Join(metaDir, "objects"),
		filepath.Join(metaDir, "refs", "heads"),
		filepath.Join(metaDir, "logs"),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}
	if err := WriteConfig(filepath.Join(metaDir, "config.toml"), cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r, err := assemble(ctx, root, metaDir, cfg, o)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	head := refs.SymbolicHead(refs.Qualify(cfg.Core.DefaultBranch))
	if err := r.Refs.SetHead(ctx, head); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	r.Logger.Debug("initialized repository",
		zap.String("root", root),
		zap.String("hash", cfg.Core.Hash),
		zap.String("refs_backend", cfg.Refs.Backend))
	return r, nil
}

// Open searches upward from path for a .arbor directory and opens the
// repository it belongs to.
func Open(ctx context.Context, path string, opts ...Option) (*Repo, error) {
	o := buildOptions(opts)
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		metaDir := filepath.Join(cur, worktree.MetaDir)
		info, err := os.Stat(metaDir)
		if err == nil && info.IsDir() {
			cfg, err := ReadConfig(filepath.Join(metaDir, "config.toml"))
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			r, err := assemble(ctx, cur, metaDir, cfg, o)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: %w (or any parent up to /): %s", ErrNotARepository, abs)
		}
		cur = parent
	}
}

func assemble(ctx context.Context, root, metaDir string, cfg *Config, o options) (*Repo, error) {
	store, err := object.OpenStore(metaDir,
		object.WithHashAlgorithm(cfg.HashAlgorithm()),
		object.WithMaxObjectSize(cfg.Core.MaxObjectSize),
	)
	if err != nil {
		return nil, err
	}

	refStore := o.refs
	if refStore == nil {
		refStore, err = openRefStore(ctx, metaDir, cfg)
		if err != nil {
			return nil, err
		}
	}

	return &Repo{
		RootDir: root,
		MetaDir: metaDir,
		Store:   store,
		Graph:   graph.New(store),
		Refs:    refStore,
		Config:  cfg,
		Logger:  o.logger,
		policy:  worktree.Policy{AllowExecutables: cfg.Security.AllowExecutables},
		now:     o.now,
	}, nil
}

func openRefStore(ctx context.Context, metaDir string, cfg *Config) (refs.Store, error) {
	switch cfg.Refs.Backend {
	case RefsBackendFile:
		return refs.NewFileStore(metaDir), nil
	case RefsBackendBolt:
		return refs.OpenBoltStore(filepath.Join(metaDir, "refs.db"))
	case RefsBackendRedis:
		return refs.DialRedisStore(ctx, refs.RedisConfig{
			Addr:   cfg.Refs.RedisAddr,
			Prefix: cfg.Refs.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown refs backend %q", cfg.Refs.Backend)
	}
}
