package main

import (
	"errors"
	"fmt"
	"time"

	"debatehub/config"
	"debatehub/utils"

	"github.com/spf13/cobra"
)

// newTokenCommand mints a signed token for local testing of the debate
// socket.
func newTokenCommand(configPath *string) *cobra.Command {
	var userID, email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed JWT for a test user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" && email == "" {
				return errors.New("--user or --email is required")
			}
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			utils.SetJWTSecret(cfg.JWT.Secret)
			token, err := utils.GenerateJWTToken(userID, email, time.Duration(cfg.JWT.Expiry)*time.Minute)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}
