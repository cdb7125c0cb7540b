package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/paralympics-auth/internal/auth"
	"github.com/spec-kit/paralympics-auth/internal/config"
)

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or inspect access tokens with the configured signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "issue <account-id>",
		Short: "Sign a token for an account id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadSigningKey()
			if err != nil {
				return err
			}
			issued, err := auth.NewTokenIssuer(key).Issue(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]any{
				"token":      issued.Value,
				"sub":        issued.Subject,
				"issued_at":  issued.IssuedAt,
				"expires_at": issued.ExpiresAt,
			})
		},
	})

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "inspect <token>",
		Short: "Validate a token and print its status and claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadSigningKey()
			if err != nil {
				return err
			}
			result := auth.NewTokenValidator(key).Validate(strings.TrimSpace(args[0]))
			out := map[string]any{"status": result.Status.String()}
			if result.Valid() {
				out["sub"] = result.Claims.Subject
				out["issued_at"] = result.Claims.IssuedAt.Format(time.RFC3339)
				out["expires_at"] = result.Claims.ExpiresAt.Format(time.RFC3339)
			} else if result.Err != nil {
				out["reason"] = result.Err.Error()
			}
			if err := writeJSON(cmd, out); err != nil {
				return err
			}
			if !result.Valid() {
				return fmt.Errorf("token is %s", result.Status)
			}
			return nil
		},
	})

	return tokenCmd
}

func loadSigningKey() (*auth.SigningKey, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return auth.NewSigningKey(cfg.Auth.SecretKey)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
