package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/dvloznov/gmail-finance-sync/internal/config"
	"github.com/dvloznov/gmail-finance-sync/internal/mailbox"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func newAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and store the OAuth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{ConfigFile: configFile})
			if err != nil {
				return err
			}

			oauthCfg, err := mailbox.LoadOAuthConfig(cfg.Mail.CredentialsFile)
			if err != nil {
				return err
			}

			url := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Open this URL in a browser and paste the authorization code:\n\n%s\n\nCode: ", url)

			code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && strings.TrimSpace(code) == "" {
				return fmt.Errorf("reading authorization code: %w", err)
			}

			tok, err := oauthCfg.Exchange(cmd.Context(), strings.TrimSpace(code))
			if err != nil {
				return fmt.Errorf("exchanging authorization code: %w", err)
			}
			if err := mailbox.SaveToken(cfg.Mail.TokenFile, tok); err != nil {
				return err
			}

			fmt.Fprintf(out, "Token saved to %s\n", cfg.Mail.TokenFile)
			return nil
		},
	}
}
