package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tabledesk/internal/utils"
)

func newTokenCommand() *cobra.Command {
	var (
		admin bool
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is required")
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL
			}

			var roles []string
			if admin {
				roles = append(roles, utils.RoleAdmin)
			}
			token, err := utils.GenerateToken(args[0], roles, []byte(cfg.Auth.JWTSecret), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().String("jwt-secret", "", "secret bearer tokens are signed with")
	cmd.Flags().BoolVar(&admin, "admin", false, "allow destructive catalog operations")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.token_ttl)")
	return cmd
}
