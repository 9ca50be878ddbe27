package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/templui/evidencekit/internal/app"
	"github.com/templui/evidencekit/internal/config"
	"github.com/templui/evidencekit/internal/logger"
	"github.com/templui/evidencekit/internal/model"
)

func ReclaimCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Delete a user's files whose entry no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			cfg := config.Load()
			logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)
			defer logger.Flush()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() {
				closeErr := a.Close()
				if closeErr != nil {
					slog.Error("failed to close app", "error", closeErr)
				}
			}()

			res, err := a.Reclaimer.Run(cmd.Context(), model.Session{UserID: userID})
			if err != nil {
				return err
			}

			fmt.Printf("==> Reclaimed %d orphaned file(s)\n", res.DeletedCount)
			for _, e := range res.Errors {
				fmt.Println("    failed:", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner whose files are swept")
	return cmd
}
