package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)
	return r.writePlain("Wrote %s\nSet api.base_url and session.token, then run 'notedesk setup database'.\n", r.configPath)
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlainln("Database ready at %s", r.config.Database.Path)
}

type migrationRow struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

// SetupStatus prints every migration and whether it has been applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]migrationRow, 0, len(states))
		for _, s := range states {
			rows = append(rows, migrationRow{Version: s.Version, Name: s.Name, Applied: s.Applied})
		}
		return r.writeJSON(rows, true)
	}

	for _, s := range states {
		mark := "pending"
		if s.Applied {
			mark = "applied"
		}
		if err := r.writePlain("%03d %-32s %s\n", s.Version, s.Name, mark); err != nil {
			return err
		}
	}
	return nil
}

// SetupRollback rolls back the latest applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	return r.writePlain("Rolled back the latest migration\n")
}
