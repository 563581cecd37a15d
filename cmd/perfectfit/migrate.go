package main

import (
	"context"
	"time"

	"github.com/jonathan/perfect-fit/internal/db"
	"github.com/jonathan/perfect-fit/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  "Apply the embedded PostgreSQL schema. Every statement is idempotent, so running it against an up-to-date database is a no-op.",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	database, err := db.Connect(ctx, cfg.DatabaseURL, logger.Named(log, logger.DB))
	if err != nil {
		return err
	}
	defer database.Close()

	return database.Migrate(ctx)
}
