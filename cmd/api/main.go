package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/api"
	"github.com/dvloznov/gmail-finance-sync/internal/api/handlers"
	"github.com/dvloznov/gmail-finance-sync/internal/config"
	"github.com/dvloznov/gmail-finance-sync/internal/container"
	"github.com/dvloznov/gmail-finance-sync/internal/jobs/inmemory"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
	"github.com/spf13/cobra"
)

func main() {
	var configFile, port string

	cmd := &cobra.Command{
		Use:           "api",
		Short:         "Serve the sync trigger, run history, transactions and settings over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{ConfigFile: configFile})
			if err != nil {
				return err
			}
			if port != "" {
				cfg.API.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&port, "port", "", "HTTP server port (overrides api.port)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.NewWithOptions(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	ctx = logger.WithContext(ctx, log)

	if cfg.API.Token == "" {
		log.Warn().Msg("No api.token configured - endpoints are unauthenticated")
	}

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	syncer, err := c.NewSyncer(ctx)
	if err != nil {
		return err
	}

	// Initialize run tracking
	runStore := inmemory.NewStore()
	runner := inmemory.NewRunner(runStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	handler := func(ctx context.Context) (*pipeline.RunReport, error) {
		return syncer.Run(ctx)
	}
	if err := runner.Start(workerCtx, handler); err != nil {
		return fmt.Errorf("failed to start runner: %w", err)
	}

	router := api.NewRouter(api.Handlers{
		Sync:         handlers.NewSyncHandler(runner, runStore, log),
		Transactions: handlers.NewTransactionsHandler(c, log),
		Settings:     handlers.NewSettingsHandler(c.Reference(), log),
	}, api.Options{Token: cfg.API.Token, CORSOrigin: cfg.API.CORSOrigin}, log)

	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.API.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Wait for an in-flight cycle
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping runner")
	}

	log.Info().Msg("Server exited")
	return nil
}
