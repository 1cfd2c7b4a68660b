package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCommitCmd(g *globalOptions) *cobra.Command {
	var message string
	var author string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			if message == "" {
				// A conclusion of a conflicted merge has a prepared message.
				msg, err := r.MergeMessage()
				if err != nil {
					return err
				}
				message = strings.TrimSpace(msg)
			}
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			h, err := r.Commit(cmd.Context(), message, author)
			if err != nil {
				return err
			}

			branch, err := r.CurrentBranch(cmd.Context())
			if err != nil {
				return err
			}
			if branch == "" {
				branch = "detached HEAD"
			}
			subject, _, _ := strings.Cut(message, "\n")
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, h.Short(), subject)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override author (default: [user] config or ARBOR_AUTHOR_NAME)")

	return cmd
}
