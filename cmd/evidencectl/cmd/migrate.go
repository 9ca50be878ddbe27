package cmd

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/evidencekit/internal/config"
	"github.com/templui/evidencekit/internal/db"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	cmd.AddCommand(migrateStepCmd("up", "Apply all pending migrations", db.RunMigrations))
	cmd.AddCommand(migrateStepCmd("down", "Roll back the latest migration", db.MigrateDown))
	return cmd
}

func migrateStepCmd(use, short string, step func(*sql.DB, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(database) }()

			err = step(database.DB, cfg.DBDriver)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			fmt.Printf("==> migrate %s done\n", use)
			return nil
		},
	}
}
