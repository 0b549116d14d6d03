package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteclone/internal/observer"
	"github.com/JakeFAU/siteclone/internal/request"
)

// newFetchCmd creates the 'fetch' subcommand, which submits each URL in turn
// and follows its session until the service reports completion.
func newFetchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Mirror one or more websites",
		Long: `Submits every URL to the mirroring service, one at a time, renders
the live progress of each session and downloads the resulting archive.
URLs that are not http(s), and archives that fail to download, are reported
and skipped; the remaining URLs are still processed and the command then
exits non-zero.

The service announces completion only for successful mirrors. After a fatal
service message, such as a rate-limit refusal or a failed crawl, nothing else
arrives for that session, so without --timeout the command waits forever.
Set --timeout to give up on such a session and move on.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFetchCommand,
	}
	flags := cmd.Flags()
	flags.Bool("download", true, "download the archive once a session completes")
	flags.String("dir", "", "directory archives are saved into")
	flags.String("listen", "", "address of the local status server, e.g. 127.0.0.1:9090")
	flags.Duration("timeout", 0, "give up on a session after this long; 0 waits forever, even after a fatal service message")
	mustBind(v, "download.enabled", flags.Lookup("download"))
	mustBind(v, "download.dir", flags.Lookup("dir"))
	mustBind(v, "status.listen", flags.Lookup("listen"))
	mustBind(v, "session.wait_timeout", flags.Lookup("timeout"))
	return cmd
}

func runFetchCommand(cmd *cobra.Command, args []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := a.Logger()

	return runSessions(cmd.Context(), a, cmd.OutOrStdout(), func(ctx context.Context, obs *observer.Observer) error {
		var failures *multierror.Error
		for _, website := range args {
			res, err := obs.Run(ctx, website)
			if errors.Is(err, request.ErrNotSendable) {
				failures = multierror.Append(failures, fmt.Errorf("%q: %w", website, err))
				continue
			}
			if err != nil {
				return fmt.Errorf("observe %s: %w", website, err)
			}
			logger.Info("session completed",
				zap.String("website", website),
				zap.String("token", res.Token),
				zap.Int64("pages", res.State.Pages),
				zap.Int64("files", res.State.Files),
			)
			if err := download(ctx, a, res, cmd.ErrOrStderr()); err != nil {
				if ctx.Err() != nil {
					return err
				}
				logger.Warn("archive download failed", zap.String("website", website), zap.Error(err))
				failures = multierror.Append(failures, fmt.Errorf("%q: %w", website, err))
			}
		}
		return failures.ErrorOrNil()
	})
}
