package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/container"
	"github.com/narwhalmedia/deadarchive/internal/logger"
)

type rootOptions struct {
	configFiles []string
	logLevel    string
	cfg         *config.Config
	log         *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "deadarchive",
		Short:         "Offline-first catalog of live Grateful Dead recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFiles...)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if opts.logLevel != "" {
				cfg.Logger.Level = opts.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			log, err := logger.New(config.ServiceName, cfg.Server.Environment, cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			opts.cfg = cfg
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringSliceVarP(&opts.configFiles, "config", "c", nil, "config file (yaml or json), may be repeated")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logger.level")

	cmd.AddCommand(
		newServeCmd(opts),
		newShowsCmd(opts),
		newRatingsCmd(opts),
		newDownloadsCmd(opts),
		newCacheCmd(opts),
		newMigrateCmd(opts),
		newEventsCmd(opts),
	)
	return cmd
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withApp builds the application, runs fn and tears everything down
func (o *rootOptions) withApp(fn func(ctx context.Context, app *container.App) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, cleanup, err := container.InitializeApp(o.cfg, o.log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	return fn(ctx, app)
}
