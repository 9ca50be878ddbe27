package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/templui/evidencekit/internal/config"
	"github.com/templui/evidencekit/internal/service"
)

func TokenCmd() *cobra.Command {
	var (
		userID string
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for API calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			cfg := config.Load()
			if expiry <= 0 {
				expiry = cfg.JWTExpiry
			}

			auth := service.NewAuthService(cfg.JWTSecret, expiry, cfg.IsProduction())
			token, expiresAt, err := auth.GenerateJWT(userID)
			if err != nil {
				return err
			}

			fmt.Println(token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id carried by the token")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default JWT_EXPIRY)")
	return cmd
}
