package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"wxstats/internal/cli"
	"wxstats/internal/handlers"
	"wxstats/internal/services"
	"wxstats/pkg/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the weather query API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd)
		},
	}

	cli.AddStoreFlags(cmd)
	cmd.Flags().String("host", "", "Listen host")
	cmd.Flags().Int("port", 0, "Listen port")
	return cmd
}

func serve(cmd *cobra.Command) error {
	app, err := cli.Bootstrap("wx-api", cmd.Flags())
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	cfg := app.Config
	logger := app.Logger

	if err := app.Repo.EnsureSchema(ctx); err != nil {
		logger.Error(ctx, "[STARTUP_ERROR] Failed to ensure schema", logging.Fields{}, err)
		return err
	}

	logger.Info(ctx, "[STARTUP] Starting weather stats API server", logging.Fields{
		"version":     cli.Version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"stats_ttl":   cfg.Cache.StatsTTL.String(),
	})

	weatherService := services.NewWeatherService(app.Repo, logger, app.Metrics, cfg.Cache.StatsTTL)
	weatherHandler := handlers.NewWeatherHandler(weatherService, logger, app.Metrics)

	router := handlers.NewRouter(weatherHandler)
	router.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		logger.Error(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		return err
	case <-quit:
	}

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
		return err
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
	return nil
}
