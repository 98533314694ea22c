package main

import (
	"fmt"
	"io"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/spf13/cobra"
)

func newRecentCommand() *cobra.Command {
	var category string
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the newest stored transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			txs, err := c.RecentTransactions(ctx, category, limit)
			if err != nil {
				return err
			}
			printTransactions(cmd.OutOrStdout(), txs)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only transactions in this category")
	cmd.Flags().IntVar(&limit, "limit", 12, "maximum number of transactions")
	return cmd
}

func printTransactions(w io.Writer, txs []domain.Transaction) {
	fmt.Fprintf(w, "\n=== Transactions (%d) ===\n", len(txs))
	for _, tx := range txs {
		fmt.Fprintf(w, "ID: %s | Date: %s | Title: %s | Amount: %.2f %s | Category: %s",
			tx.ID, tx.Date.Format("2006-01-02"), tx.Title, tx.Amount, tx.Currency, tx.Category)
		if tx.Subcategory != "" {
			fmt.Fprintf(w, " / %s", tx.Subcategory)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
