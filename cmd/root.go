// Package cmd defines and implements the CLI commands for the siteclone executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteclone/internal/app"
	appconfig "github.com/JakeFAU/siteclone/internal/config"
	"github.com/JakeFAU/siteclone/internal/logging"
	"github.com/JakeFAU/siteclone/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

const closeTimeout = 10 * time.Second

// newApp is the application factory. It's a variable so tests can register
// collectors on a private registry.
var newApp = func(cfg appconfig.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(cfg, logger, app.WithDownloadProgress(os.Stderr))
}

type rootOptions struct {
	cfgFile string
	envFile string
}

// newRootCmd creates and configures the root command. The App built in the
// pre-run hook is stored in holder so Execute can close it even when the
// subcommand fails.
func newRootCmd(v *viper.Viper, holder **app.App) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "siteclone",
		Short: "Mirror websites through a siteclone service and follow their progress.",
		Long: `siteclone submits websites to a mirroring service, follows the live
progress stream for each request, and downloads the finished archive.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger, err := logging.New(false, "error")
			if err != nil {
				return err
			}
			if err := config.InitConfig(v, opts.cfgFile, opts.envFile, bootLogger); err != nil {
				return err
			}
			cfg, err := appconfig.FromViper(v)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			*holder = appInstance

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default searches ./siteclone.yaml, $HOME/.siteclone, /etc/siteclone)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file loaded before the environment")
	flags.String("server", "", "mirroring service base URL")
	flags.String("output", "", "output format: text or json")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("dev", false, "development logging")
	mustBind(v, "server.url", flags.Lookup("server"))
	mustBind(v, "output.format", flags.Lookup("output"))
	mustBind(v, "logging.level", flags.Lookup("log-level"))
	mustBind(v, "logging.development", flags.Lookup("dev"))

	cmd.AddCommand(newFetchCmd(v))
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newTokenCmd())

	return cmd
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// run executes the command tree with args and closes the App afterwards.
func run(ctx context.Context, cmd *cobra.Command, holder **app.App) error {
	err := cmd.ExecuteContext(ctx)
	if *holder != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := (*holder).Close(closeCtx); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}
	return err
}

// Execute is the main entry point.
func Execute() {
	var holder *app.App
	root := newRootCmd(viper.New(), &holder)
	if err := run(context.Background(), root, &holder); err != nil {
		os.Exit(1)
	}
}
