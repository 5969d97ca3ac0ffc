package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepreview/socratic/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token <userID>",
	Short: "Mint a bearer token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		v, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		token, err := v.Issue(args[0], ttl)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}
