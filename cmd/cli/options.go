package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/spf13/cobra"
)

func newOptionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "Print the categories, accounts and currencies extraction is constrained to",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ref, err := c.Reference().Load(ctx)
			if err != nil {
				return err
			}
			printOptions(cmd.OutOrStdout(), ref)
			return nil
		},
	}
}

func printOptions(w io.Writer, ref domain.ReferenceConfig) {
	if ref.IsEmpty() {
		fmt.Fprintln(w, "No reference configuration found.")
		return
	}

	fmt.Fprintln(w, "\n=== Reference configuration ===")
	fmt.Fprintln(w, "Categories:")
	for _, cat := range ref.Categories {
		if len(cat.Subcategories) == 0 {
			fmt.Fprintf(w, "  - %s\n", cat.Name)
			continue
		}
		fmt.Fprintf(w, "  - %s (%s)\n", cat.Name, strings.Join(cat.Subcategories, ", "))
	}
	fmt.Fprintf(w, "Accounts:   %s\n", strings.Join(ref.Accounts, ", "))
	fmt.Fprintf(w, "Currencies: %s\n", strings.Join(ref.Currencies, ", "))
	fmt.Fprintln(w)
}
