package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/arbor/pkg/object"
)

// Ref backend names accepted in [refs] backend.
const (
	RefsBackendFile  = "file"
	RefsBackendBolt  = "bolt"
	RefsBackendRedis = "redis"
)

// Environment variables that override [user].
const (
	EnvAuthorName  = "ARBOR_AUTHOR_NAME"
	EnvAuthorEmail = "ARBOR_AUTHOR_EMAIL"
)

// Config is the repository-local configuration stored in .arbor/config.toml.
type Config struct {
	Core     CoreConfig     `toml:"core"`
	User     UserConfig     `toml:"user"`
	Refs     RefsConfig     `toml:"refs"`
	Security SecurityConfig `toml:"security"`
}

type CoreConfig struct {
	Hash          string `toml:"hash"`
	MaxObjectSize int64  `toml:"max_object_size"`
	DefaultBranch string `toml:"default_branch"`
}

type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type RefsConfig struct {
	Backend     string `toml:"backend"`
	RedisAddr   string `toml:"redis_addr,omitempty"`
	RedisPrefix string `toml:"redis_prefix,omitempty"`
}

type SecurityConfig struct {
	AllowExecutables bool `toml:"allow_executables"`
}

// DefaultConfig returns the settings used for keys missing from the file.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			Hash:          string(object.SHA256),
			MaxObjectSize: object.DefaultMaxObjectSize,
			DefaultBranch: "main",
		},
		Refs: RefsConfig{Backend: RefsBackendFile},
	}
}

// ReadConfig decodes path over the defaults. A missing file yields the
// defaults.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// WriteConfig atomically writes cfg to path.
func WriteConfig(path string, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// Validate rejects unknown hash algorithms, ref backends and branch names.
func (c *Config) Validate() error {
	if _, err := object.ParseHashAlgorithm(c.Core.Hash); err != nil {
		return err
	}
	switch c.Refs.Backend {
	case RefsBackendFile, RefsBackendBolt, RefsBackendRedis:
	default:
		return fmt.Errorf("unknown refs backend %q", c.Refs.Backend)
	}
	if strings.TrimSpace(c.Core.DefaultBranch) == "" {
		return fmt.Errorf("core.default_branch is empty")
	}
	return nil
}

// HashAlgorithm returns the configured object digest.
func (c *Config) HashAlgorithm() object.HashAlgorithm {
	a, err := object.ParseHashAlgorithm(c.Core.Hash)
	if err != nil {
		return object.SHA256
	}
	return a
}

// Author formats the commit author from [user], with ARBOR_AUTHOR_NAME and
// ARBOR_AUTHOR_EMAIL taking precedence.
func (c *Config) Author() string {
	name := c.User.Name
	if v := os.Getenv(EnvAuthorName); v != "" {
		name = v
	}
	email := c.User.Email
	if v := os.Getenv(EnvAuthorEmail); v != "" {
		email = v
	}
	switch {
	case name == "" && email == "":
		return "unknown"
	case email == "":
		return name
	case name == "":
		return "<" + email + ">"
	default:
		return name + " <" + email + ">"
	}
}
