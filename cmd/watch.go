package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/siteclone/internal/observer"
)

// newWatchCmd creates the 'watch' subcommand. It follows the status events
// of a token another client already submitted, without sending a request.
func newWatchCmd() *cobra.Command {
	var tok string
	cmd := &cobra.Command{
		Use:   "watch --token <token>",
		Short: "Follow an existing session by token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runSessions(cmd.Context(), a, cmd.OutOrStdout(), func(ctx context.Context, obs *observer.Observer) error {
				res, err := obs.Watch(ctx, tok)
				if err != nil {
					return fmt.Errorf("watch %s: %w", tok, err)
				}
				return download(ctx, a, res, cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().StringVar(&tok, "token", "", "session token to follow")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
