// Package repo ties the object store, commit graph, ref store, index and
// worktree together into repository operations. Every operation runs on an
// explicit *Repo; there is no package-level state.
package repo

import (
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/graph"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/refs"
	"github.com/odvcencio/arbor/pkg/worktree"
)

var (
	ErrNotARepository    = errors.New("not an arbor repository")
	ErrAlreadyExists     = errors.New("repository already exists")
	ErrNothingToCommit   = errors.New("nothing to commit")
	ErrDirtyWorktree     = errors.New("worktree has uncommitted changes")
	ErrUnknownRevision   = errors.New("unknown revision")
	ErrBranchExists      = errors.New("branch already exists")
	ErrBranchNotFound    = errors.New("branch not found")
	ErrMergeInProgress   = errors.New("merge in progress")
	ErrNoMergeInProgress = errors.New("no merge in progress")
)

// Repo is an opened repository.
type Repo struct {
	RootDir string // worktree root
	MetaDir string // .arbor directory

	Store  *object.Store
	Graph  *graph.Graph
	Refs   refs.Store
	Config *Config
	Logger *zap.Logger

	policy worktree.Policy
	now    func() time.Time
}

// Option configures Init and Open.
type Option func(*options)

type options struct {
	logger *zap.Logger
	refs   refs.Store
	config *Config
	now    func() time.Time
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRefStore overrides the ref backend selected by configuration.
func WithRefStore(s refs.Store) Option {
	return func(o *options) { o.refs = s }
}

// WithConfig sets the configuration written by Init. Open ignores it.
func WithConfig(cfg *Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithClock sets the time source used for commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Close releases the ref backend.
func (r *Repo) Close() error {
	return r.Refs.Close()
}

func (r *Repo) metaPath(name string) string {
	return filepath.Join(r.MetaDir, name)
}

func (r *Repo) indexPath() string  { return r.metaPath("index") }
func (r *Repo) configPath() string { return r.metaPath("config.toml") }
