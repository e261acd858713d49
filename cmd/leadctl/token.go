package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"leadbot/internal/auth"
	"leadbot/internal/rbac"
)

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token pair for a dashboard user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !rbac.IsKnownRole(tokenRole) {
			return eris.Errorf("token: --role must be admin, manager or rep, got %q", tokenRole)
		}
		m, err := auth.NewManager(cfg.Auth)
		if err != nil {
			return err
		}
		pair, err := m.IssuePair(time.Now(), tokenUser, tokenRole)
		if err != nil {
			return err
		}
		return printJSON(cmd, pair)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", rbac.RoleRep, "admin, manager or rep")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
