package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kidlearn/stars-hub/config"
	"github.com/kidlearn/stars-hub/internal/infrastructure/persistence/postgres"
	"github.com/kidlearn/stars-hub/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Manage the database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}
		return withMigrator(cmd, func(ctx context.Context, m *postgres.Migrator, log *logger.Logger) error {
			switch action {
			case "down":
				if err := m.Rollback(ctx); err != nil {
					return fmt.Errorf("failed to roll back: %w", err)
				}
				log.Info("rolled back last migration")
				return nil
			case "status":
				return printStatus(ctx, cmd, m)
			default:
				n, err := m.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
				log.Info("database schema is up to date", logger.Int("applied", n))
				return nil
			}
		})
	},
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *postgres.Migrator, log *logger.Logger) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.App.Store != config.StorePostgres {
		return errors.New("migrations need the postgres store")
	}
	log := setupLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	a, err := openApp(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, postgres.NewMigrator(a.db), log)
}

func printStatus(ctx context.Context, cmd *cobra.Command, m *postgres.Migrator) error {
	migrations, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, mg := range migrations {
		applied := "pending"
		if mg.IsApplied {
			applied = mg.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%03d\t%s\t%s\n", mg.Version, mg.Name, applied)
	}
	return w.Flush()
}
