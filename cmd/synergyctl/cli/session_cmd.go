package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newSessionCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create or destroy sessions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create USER",
			Short: "Open a session for a user and print its id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
					sess, err := b.Sessions.Create(ctx, args[0])
					if err != nil {
						return err
					}
					ttl := b.Sessions.TTL()
					result := map[string]any{"id": sess.ID, "userId": sess.UserID, "expiresAt": sess.ExpiresAt, "ttl": ttl.String()}
					return printResult(cmd, result, func(w io.Writer) {
						fmt.Fprintf(w, "%s\texpires %s (ttl %s)\n", sess.ID, sess.ExpiresAt.Format(time.RFC3339), ttl)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "destroy ID",
			Short: "Invalidate a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
					if err := b.Sessions.Destroy(ctx, args[0]); err != nil {
						return err
					}
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "session destroyed")
					return err
				})
			},
		},
	)
	return cmd
}
