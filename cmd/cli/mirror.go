package main

import (
	"errors"
	"fmt"

	infraBQ "github.com/dvloznov/gmail-finance-sync/internal/infra/bigquery"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/dvloznov/gmail-finance-sync/internal/notionsync"
	"github.com/spf13/cobra"
)

func newMirrorNotionCommand() *cobra.Command {
	var limit int
	var category string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "mirror-notion",
		Short: "Copy recent BigQuery transactions into the Notion database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if c.BigQuery() == nil || c.Notion() == nil {
				return errors.New("mirror-notion needs both store.project_id and notion.token/notion.database_id")
			}

			txs, err := c.BigQuery().QueryRecentTransactions(ctx, infraBQ.RecentFilter{Category: category, Limit: limit})
			if err != nil {
				return err
			}

			log := logger.FromContext(ctx)
			log.Info().Int("transactions", len(txs)).Bool("dry_run", dryRun).Msg("Mirroring transactions to Notion")

			res, err := notionsync.Mirror(ctx, txs, c.Notion(), dryRun)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %d transaction(s), %d already present.\n", res.Created, res.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "number of most recent transactions to consider")
	cmd.Flags().StringVar(&category, "category", "", "only transactions in this category")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be created without writing")
	return cmd
}
