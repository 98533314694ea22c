// Command cli bundles the operator utilities: OAuth setup, reference
// printout, free-text ingestion and point queries/updates on the store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/gmail-finance-sync/internal/config"
	"github.com/dvloznov/gmail-finance-sync/internal/container"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cli",
		Short:         "Gmail finance sync operator commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")

	root.AddCommand(
		newAuthCommand(),
		newOptionsCommand(),
		newAICommand(),
		newRecentCommand(),
		newRecategorizeCommand(),
		newBodyCommand(),
		newMirrorNotionCommand(),
	)
	return root
}

// setup loads configuration and builds the container. Callers must Close it.
func setup(ctx context.Context) (context.Context, *container.Container, error) {
	cfg, err := config.Load(config.Options{ConfigFile: configFile})
	if err != nil {
		return ctx, nil, err
	}

	log, err := logger.NewWithOptions(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return ctx, nil, err
	}
	ctx = logger.WithContext(ctx, log)

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, c, nil
}
