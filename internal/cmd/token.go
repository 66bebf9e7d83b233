package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zaqqye/defense_backend_v1/internal/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token signed with JWT_SECRET",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().String("subject", "admin", "subject recorded in the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	subject, _ := cmd.Flags().GetString("subject")
	claims := middleware.Claims{Role: middleware.RoleAdmin}
	claims.Subject = subject
	token, expires, err := middleware.IssueToken(middleware.AuthConfig{
		JWTSecret:    cfg.JWTSecret,
		JWTExpiresIn: cfg.AccessTokenTTL(),
	}, claims)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires %s\n", token, expires.UTC().Format("2006-01-02 15:04:05"))
	return nil
}
