package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/artisansflow/portal/internal/identity"
)

func newTokenCommand(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with provider access tokens",
	}

	var (
		userID string
		email  string
		role   string
		ttl    time.Duration
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Sign a development access token with the project JWT secret",
		Long: `Sign an access token the portal accepts, for local testing without the
identity provider. The role lands in user metadata; the stored profile still
decides the resolved role.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Identity.JWTSecret == "" {
				return errors.New("SUPABASE_JWT_SECRET is required")
			}
			if userID == "" {
				userID = uuid.NewString()
			}
			if ttl <= 0 {
				ttl = cfg.Identity.DevTokenTTL()
			}

			metadata := map[string]any{}
			if role != "" {
				metadata[identity.MetadataRole] = role
			}
			verifier := identity.NewTokenVerifier(cfg.Identity.JWTSecret, ttl)
			token, expiresAt, err := verifier.Issue(identity.User{ID: userID, Email: email, Metadata: metadata})
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "user %s, expires %s\n", userID, expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	mint.Flags().StringVar(&userID, "user-id", "", "subject of the token (random when empty)")
	mint.Flags().StringVar(&email, "email", "", "email claim")
	mint.Flags().StringVar(&role, "role", "", "role written to user metadata")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to AUTH_DEV_TOKEN_TTL_MINUTES)")

	cmd.AddCommand(mint)
	return cmd
}
