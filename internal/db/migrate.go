package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Pedro-99/taqa-backend/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type migrateLogger struct {
	log logger.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }

func newMigrate(ctx context.Context, config Config) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, config.MigrationURL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialise migrations: %w", err)
	}
	m.Log = migrateLogger{log: logger.FromContext(ctx).With("component", "migrate")}
	return m, nil
}

func closeMigrate(ctx context.Context, m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		logger.FromContext(ctx).Warn("Failed to close migrations", "source_err", srcErr, "db_err", dbErr)
	}
}

// RunMigrations applies every pending embedded migration.
func RunMigrations(ctx context.Context, config Config) error {
	m, err := newMigrate(ctx, config)
	if err != nil {
		return err
	}
	defer closeMigrate(ctx, m)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.FromContext(ctx).Info("Database schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.FromContext(ctx).Info("Applied migrations", "version", version)
	return nil
}

// RollbackMigrations reverts the last steps migrations, or all of them when
// steps is not positive.
func RollbackMigrations(ctx context.Context, config Config, steps int) error {
	m, err := newMigrate(ctx, config)
	if err != nil {
		return err
	}
	defer closeMigrate(ctx, m)

	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	logger.FromContext(ctx).Info("Rolled back migrations", "steps", steps)
	return nil
}
