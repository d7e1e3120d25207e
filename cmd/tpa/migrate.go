package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/alecthomas/kong"
	_ "github.com/lib/pq"
	"github.com/tpa/backend/internal/infrastructure/config"
	"github.com/tpa/backend/internal/infrastructure/logger"
	"github.com/tpa/backend/internal/infrastructure/migration"
	"go.uber.org/zap"
)

// MigrateCmd manages the schema of the exchange-rate store. The connection
// comes from the TPA_DATABASE_* environment, as for the server.
type MigrateCmd struct {
	Up      MigrateUpCmd      `cmd:"" help:"Apply all pending migrations."`
	Down    MigrateDownCmd    `cmd:"" help:"Roll back all migrations."`
	Steps   MigrateStepsCmd   `cmd:"" help:"Apply n migrations, negative to roll back."`
	Version MigrateVersionCmd `cmd:"" help:"Show the applied migration version."`
	Force   MigrateForceCmd   `cmd:"" help:"Mark a version as applied without running it."`
	List    MigrateListCmd    `cmd:"" help:"List the migrations embedded in this binary."`
}

type MigrateUpCmd struct{}

func (MigrateUpCmd) Run(ctx *kong.Context, globals *Globals) error {
	return withMigrator(globals, func(m *migration.Migrator) error {
		if err := m.Up(); err != nil {
			return err
		}
		printSuccess(ctx.Stdout, "schema up to date")
		return nil
	})
}

type MigrateDownCmd struct{}

func (MigrateDownCmd) Run(ctx *kong.Context, globals *Globals) error {
	return withMigrator(globals, func(m *migration.Migrator) error {
		if err := m.Down(); err != nil {
			return err
		}
		printSuccess(ctx.Stdout, "all migrations rolled back")
		return nil
	})
}

type MigrateStepsCmd struct {
	N int `arg:"" help:"Number of migrations to apply, pass negative values after --."`
}

func (cmd *MigrateStepsCmd) Run(ctx *kong.Context, globals *Globals) error {
	if cmd.N == 0 {
		return errors.New("step count must not be zero")
	}
	return withMigrator(globals, func(m *migration.Migrator) error {
		if err := m.Steps(cmd.N); err != nil {
			return err
		}
		printSuccess(ctx.Stdout, fmt.Sprintf("moved %d step(s)", cmd.N))
		return nil
	})
}

type MigrateVersionCmd struct{}

func (MigrateVersionCmd) Run(ctx *kong.Context, globals *Globals) error {
	return withMigrator(globals, func(m *migration.Migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		switch {
		case version == 0:
			printInfof(ctx.Stdout, "no migration applied")
		case dirty:
			printWarn(ctx.Stdout, fmt.Sprintf("version %d is dirty, fix the schema then force it", version))
		default:
			printInfof(ctx.Stdout, "version %d", version)
		}
		return nil
	})
}

type MigrateForceCmd struct {
	Version int `arg:"" help:"Version to record as applied."`
}

func (cmd *MigrateForceCmd) Run(ctx *kong.Context, globals *Globals) error {
	return withMigrator(globals, func(m *migration.Migrator) error {
		if err := m.Force(cmd.Version); err != nil {
			return err
		}
		printWarn(ctx.Stdout, fmt.Sprintf("forced version %d", cmd.Version))
		return nil
	})
}

type MigrateListCmd struct{}

func (MigrateListCmd) Run(ctx *kong.Context) error {
	names, err := migration.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		printInfof(ctx.Stdout, "%s", name)
	}
	printSuccess(ctx.Stdout, fmt.Sprintf("%d embedded migration(s)", len(names)))
	return nil
}

// withMigrator opens the configured database and hands a migrator to fn
func withMigrator(globals *Globals, fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled() {
		return errors.New("no database configured, set TPA_DATABASE_HOST")
	}

	log, err := logger.New(&logger.Config{
		Level:      globals.LogLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05",
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()
	log.Debug("Opening rate store",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName))

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}

	m, err := migration.New(db, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
