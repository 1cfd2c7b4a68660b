package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/repo"
	"github.com/odvcencio/arbor/pkg/worktree"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	dir     string
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "arbor",
		Short:         "Content-addressed version control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.dir, "dir", "C", ".", "run as if started in this directory")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newAddCmd(g))
	root.AddCommand(newRmCmd(g))
	root.AddCommand(newStatusCmd(g))
	root.AddCommand(newCommitCmd(g))
	root.AddCommand(newLogCmd(g))
	root.AddCommand(newDiffCmd(g))
	root.AddCommand(newBranchCmd(g))
	root.AddCommand(newCheckoutCmd(g))
	root.AddCommand(newMergeCmd(g))
	root.AddCommand(newMergeBaseCmd(g))
	root.AddCommand(newCatFileCmd(g))
	root.AddCommand(newVerifyCmd(g))
	root.AddCommand(newReflogCmd(g))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "arbor "+version)
		},
	}
}

func (g *globalOptions) logger() (*zap.Logger, error) {
	if !g.verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// open opens the repository containing the working directory.
func (g *globalOptions) open(cmd *cobra.Command) (*repo.Repo, error) {
	logger, err := g.logger()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return repo.Open(cmd.Context(), g.dir, repo.WithLogger(logger))
}

// paths converts command-line paths into slash paths relative to the
// repository root. The root itself becomes ".".
func (g *globalOptions) paths(r *repo.Repo, args []string) ([]string, error) {
	cwd, err := filepath.Abs(g.dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		abs := a
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, a)
		}
		if filepath.Clean(abs) == r.RootDir {
			out = append(out, ".")
			continue
		}
		rel, err := worktree.Rel(r.RootDir, cwd, a)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}
