package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alumnet/alumnet/internal/auth"
	"github.com/alumnet/alumnet/internal/config"
	"github.com/alumnet/alumnet/internal/identity"
)

// newTokenCmd mints a bearer token for local testing against a server that
// has auth.jwt_secret set.
func newTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT for an identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set; the server trusts gateway headers instead")
			}
			id, err := identity.New(userID, role)
			if err != nil {
				return err
			}
			token, expiresAt, err := auth.GenerateToken(id, cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", "", "STUDENT, ALUMNI or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
