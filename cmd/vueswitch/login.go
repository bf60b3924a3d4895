package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to Emporia and save tokens",
	Long: `Authenticates with the configured Emporia credentials and stores the
tokens in the token storage file, so later runs can reuse or refresh them.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	client := newAPIClient(cfg, logger)
	if err := client.Login(cmd.Context(), credentials(cfg)); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s, tokens saved to %s\n",
		cfg.Emporia.Username, cfg.Emporia.TokenStorageFile)
	return nil
}
