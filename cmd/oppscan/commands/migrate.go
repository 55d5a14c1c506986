package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantgrid/oppscan/internal/runstore"
	"github.com/quantgrid/oppscan/pkg/config"
	"github.com/quantgrid/oppscan/pkg/database"
	"github.com/quantgrid/oppscan/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create database tables",
	Long: `Creates the runs, recommendations and fundamentals_cache tables.
Safe to run repeatedly.

Example:
  go run ./cmd/oppscan migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := runstore.InitSchema(context.Background(), db.Pool); err != nil {
		return err
	}

	log.Info("Schema created")
	fmt.Println("Schema created")
	return nil
}
