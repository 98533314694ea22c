package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBodyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "body <message-id>",
		Short: "Print the archived body text of a processed message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			a, err := c.Archive()
			if err != nil {
				return err
			}
			body, err := a.ReadBody(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}
