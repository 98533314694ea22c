package main

import (
	"fmt"
	"strings"

	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
	"github.com/spf13/cobra"
)

func newAICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ai <text...>",
		Short: "Extract a transaction from free text and store it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			syncer, err := c.NewTextSyncer(ctx)
			if err != nil {
				return err
			}

			res, err := syncer.IngestText(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Outcome {
			case pipeline.OutcomeCommitted:
				fmt.Fprintf(out, "Transaction stored with id %s\n", res.TransactionID)
			case pipeline.OutcomeIgnored:
				fmt.Fprintln(out, "The text describes a failed or declined transaction; nothing stored.")
			default:
				fmt.Fprintf(out, "Nothing stored (%s)\n", res.Outcome)
			}
			return nil
		},
	}
}
