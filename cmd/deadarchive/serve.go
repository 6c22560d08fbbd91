package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/container"
	grpctransport "github.com/narwhalmedia/deadarchive/internal/transport/grpc"
	httptransport "github.com/narwhalmedia/deadarchive/internal/transport/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and gRPC health, run download workers and cache cleanup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, app *container.App) error {
				return serve(ctx, app)
			})
		},
	}
}

func serve(ctx context.Context, app *container.App) error {
	cfg := app.Config
	log := app.Logger

	log.Info("starting service",
		zap.String("environment", cfg.Server.Environment),
		zap.String("database", cfg.Database.Driver),
		zap.String("events", cfg.Events.Backend),
	)

	if err := app.Downloads.Recover(ctx); err != nil {
		log.Error("failed to recover downloads", zap.Error(err))
	}

	handler := httptransport.NewHandler(app.Sync, app.Downloads, map[string]httptransport.HealthCheck{
		"database": app.PingDB,
	}, log)
	routes, err := handler.Routes()
	if err != nil {
		return fmt.Errorf("failed to register routes: %w", err)
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpctransport.NewServer(config.ServiceName, map[string]grpctransport.Check{
		"database": app.PingDB,
	}, log)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting HTTP server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.ListenAndServe(cfg.Server.GRPCPort)
	})
	g.Go(func() error {
		grpcServer.Probe(ctx, 15*time.Second)
		return nil
	})
	g.Go(func() error {
		runCleanup(ctx, app, cfg.Cache.CleanupInterval)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTime)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown HTTP server", zap.Error(err))
		}
		grpcServer.Stop(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("service shutdown complete")
	return nil
}

// runCleanup evicts stale shows every interval until ctx is done
func runCleanup(ctx context.Context, app *container.App, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := app.Sync.CleanupStale(ctx)
			if err != nil {
				app.Logger.Error("cache cleanup failed", zap.Error(err))
				continue
			}
			app.Logger.Debug("cache cleanup finished", zap.Int("removed", len(removed)))
		}
	}
}
