package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecategorizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recategorize <transaction-id> <category> [subcategory]",
		Short: "Change the category of one stored transaction",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			fields := recategorizeFields(args)
			if err := c.UpdateTransaction(ctx, args[0], fields); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s -> %s / %s\n", args[0], fields["category"], fields["subcategory"])
			return nil
		},
	}
}

// recategorizeFields always sets subcategory so a stale one is cleared.
func recategorizeFields(args []string) map[string]interface{} {
	sub := ""
	if len(args) > 2 {
		sub = args[2]
	}
	return map[string]interface{}{
		"category":    args[1],
		"subcategory": sub,
	}
}
