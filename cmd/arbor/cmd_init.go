package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/pkg/repo"
)

func newInitCmd(g *globalOptions) *cobra.Command {
	cfg := repo.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty arbor repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.dir
			if len(args) > 0 {
				path = args[0]
				if !filepath.IsAbs(path) {
					path = filepath.Join(g.dir, path)
				}
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			logger, err := g.logger()
			if err != nil {
				return err
			}
			r, err := repo.Init(cmd.Context(), abs, repo.WithConfig(cfg), repo.WithLogger(logger))
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty arbor repository in %s%c\n", r.MetaDir, filepath.Separator)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Core.Hash, "hash", cfg.Core.Hash, "object hash algorithm (sha256 or blake2b)")
	cmd.Flags().StringVar(&cfg.Core.DefaultBranch, "initial-branch", cfg.Core.DefaultBranch, "name of the first branch")
	cmd.Flags().StringVar(&cfg.Refs.Backend, "refs-backend", cfg.Refs.Backend, "ref storage (file, bolt or redis)")
	cmd.Flags().StringVar(&cfg.Refs.RedisAddr, "redis-addr", "", "redis address for the redis ref backend")
	cmd.Flags().StringVar(&cfg.Refs.RedisPrefix, "redis-prefix", "", "key prefix for the redis ref backend")
	cmd.Flags().BoolVar(&cfg.Security.AllowExecutables, "allow-executables", false, "accept files with executable extensions")

	return cmd
}
