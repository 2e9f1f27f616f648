package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nibbleapp/nibble-server/internal/auth"
)

var (
	tokenAccount string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage account access tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for an account",
	Long: `Issue a PASETO bearer token for an account, signed with the server key.

The key comes from TOKEN_KEY, or from the key file under the data path
(generated on first use).`,
	RunE: runTokenIssue,
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenAccount, "account", "", "Account ID (required)")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default: server access token duration)")
	_ = tokenIssueCmd.MarkFlagRequired("account")

	tokenCmd.AddCommand(tokenIssueCmd)
}

func runTokenIssue(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key := cfg.Auth.AccessTokenKey
	if key == "" {
		if key, err = auth.LoadOrGenerateKey(cfg.App.DataPath); err != nil {
			return fmt.Errorf("load token key: %w", err)
		}
	}

	tokens, err := auth.NewTokenService(key, cfg.Auth.AccessTokenDuration)
	if err != nil {
		return err
	}

	token, err := tokens.GenerateAccessToken(tokenAccount, tokenTTL)
	if err != nil {
		return err
	}

	if !asJSON {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	}

	claims, err := tokens.VerifyAccessToken(token)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"token":      token,
		"account_id": claims.AccountID,
		"token_id":   claims.TokenID,
		"expires_at": claims.ExpiresAt,
		"expires_in": claims.Remaining(time.Now()).Round(time.Second).String(),
	})
}
