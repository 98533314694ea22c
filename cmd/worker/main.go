package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/config"
	"github.com/dvloznov/gmail-finance-sync/internal/container"
	"github.com/dvloznov/gmail-finance-sync/internal/jobs"
	"github.com/dvloznov/gmail-finance-sync/internal/jobs/inmemory"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	var configFile string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:           "worker",
		Short:         "Run sync cycles on a fixed interval until interrupted",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{ConfigFile: configFile})
			if err != nil {
				return err
			}
			if interval > 0 {
				cfg.Worker.Interval = interval
			}
			if cfg.Worker.Interval <= 0 {
				return errors.New("worker.interval must be positive")
			}
			return runWorker(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between cycles (overrides worker.interval)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	log, err := logger.NewWithOptions(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	syncer, err := c.NewSyncer(ctx)
	if err != nil {
		return err
	}

	runner := inmemory.NewRunner(inmemory.NewStore())
	handler := func(ctx context.Context) (*pipeline.RunReport, error) {
		return syncer.Run(ctx)
	}
	if err := runner.Start(ctx, handler); err != nil {
		return fmt.Errorf("failed to start runner: %w", err)
	}

	log.Info().Dur("interval", cfg.Worker.Interval).Str("label", cfg.Mail.Label).Msg("Worker service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	ticker := time.NewTicker(cfg.Worker.Interval)
	defer ticker.Stop()

	trigger(ctx, runner, log)
loop:
	for {
		select {
		case <-ticker.C:
			trigger(ctx, runner, log)
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop waits for the in-flight cycle, which sees the cancelled context between messages.
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
	return nil
}

func trigger(ctx context.Context, t jobs.Trigger, log zerolog.Logger) {
	run, err := t.Trigger(ctx, "interval")
	switch {
	case errors.Is(err, jobs.ErrRunInProgress):
		log.Warn().Str("run_id", run.RunID).Msg("Previous cycle still running, skipping tick")
	case err != nil:
		log.Error().Err(err).Msg("Failed to trigger sync run")
	default:
		log.Debug().Str("run_id", run.RunID).Msg("Sync run triggered")
	}
}
