package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "becoming/internal/jwt_token"
	"becoming/internal/platform/config"
	id "becoming/pkg/domain"
)

type tokenOptions struct {
	account    string
	ttl        time.Duration
	signingKey string
	issuer     string
}

type tokenResult struct {
	Account   id.AccountID `json:"account"`
	Token     string       `json:"access_token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// NewTokenCommand groups access token helpers.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access tokens",
	}
	cmd.AddCommand(newTokenIssueCommand(rootOpts))
	return cmd
}

func newTokenIssueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for an identity",
		Long: "Issue a bearer token for an identity. The signing key and issuer default to\n" +
			"JWT_SIGNING_KEY and JWT_ISSUER, read the same way the server reads them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := id.ResolveAccount(opts.account)
			if err != nil {
				return fmt.Errorf("--account: %w", err)
			}
			if opts.ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			signingKey, issuer := opts.signingKey, opts.issuer
			if signingKey == "" || issuer == "" {
				cfg, err := config.FromEnv()
				if err != nil {
					return err
				}
				if signingKey == "" {
					signingKey = cfg.Auth.SigningKey
				}
				if issuer == "" {
					issuer = cfg.Auth.Issuer
				}
			}

			svc := jwttoken.NewJWTService(signingKey, issuer)
			token, err := svc.GenerateAccessToken(account, opts.ttl)
			if err != nil {
				return err
			}
			result := tokenResult{
				Account:   account,
				Token:     token,
				ExpiresAt: time.Now().Add(opts.ttl).UTC().Truncate(time.Second),
			}
			return output(cmd.OutOrStdout(), rootOpts, result, token)
		},
	}

	cmd.Flags().StringVar(&opts.account, "account", "alice", "identity as a dev account name or hex")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&opts.signingKey, "signing-key", "", "HMAC signing key (default from JWT_SIGNING_KEY)")
	cmd.Flags().StringVar(&opts.issuer, "issuer", "", "token issuer (default from JWT_ISSUER)")
	return cmd
}
