// Command sync runs one discovery cycle over the configured Gmail label.
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
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitCycleFailed = 1
	exitConfig      = 2
)

type flags struct {
	configFile string
	label      string
	model      string
	timeout    time.Duration
}

// configError marks failures that happen before any message is touched.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

func main() {
	cmd := newCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var cfgErr configError
		if errors.As(err, &cfgErr) {
			os.Exit(exitConfig)
		}
		os.Exit(exitCycleFailed)
	}
}

func newCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "sync",
		Short:         "Turn labeled bank notification emails into stored transactions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.configFile, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&f.label, "label", "", "Gmail label to process (overrides mail.label)")
	cmd.Flags().StringVar(&f.model, "model", "", "Gemini model name (overrides llm.model)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Minute, "upper bound for the whole cycle")
	return cmd
}

func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: f.configFile})
	if err != nil {
		return nil, err
	}
	if f.label != "" {
		cfg.Mail.Label = f.label
	}
	if f.model != "" {
		cfg.LLM.Model = f.model
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return configError{err}
	}

	log, err := logger.NewWithOptions(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return configError{err}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		return configError{err}
	}
	defer c.Close()

	syncer, err := c.NewSyncer(ctx)
	if err != nil {
		return configError{err}
	}

	report, err := syncer.Run(ctx)
	if errors.Is(err, pipeline.ErrLabelNotFound) {
		return configError{err}
	}
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d message(s): %d committed, %d ignored, %d unreadable, %d dead-lettered.\n",
		len(report.Results),
		report.Count(pipeline.OutcomeCommitted),
		report.Count(pipeline.OutcomeIgnored),
		report.Count(pipeline.OutcomeUnreadable),
		report.Count(pipeline.OutcomeDeadLettered))
	return nil
}
