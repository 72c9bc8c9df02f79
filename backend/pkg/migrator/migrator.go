package migrator

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/postgres"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/sqlite"

	"growmat/backend/pkg/dialect"
	"growmat/backend/pkg/utils"
)

const migrationsDir = "migrations"

// Migrator applies the embedded schema migrations.
type Migrator interface {
	Migrate() error
	Status() ([]MigrationStatus, error)
}

// MigrationStatus reports whether a migration file has been applied.
type MigrationStatus struct {
	Version string
	File    string
	Applied bool
}

type dbmateMigrator struct {
	db *dbmate.DB
	l  *slog.Logger
}

// New creates a migrator for d. For SQLite connStr is a file path, for PostgreSQL a URL.
//
//nolint:ireturn // Returns Migrator interface
func New(l *slog.Logger, d dialect.Dialect, connStr string, fs embed.FS) (Migrator, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if connStr == "" {
		return nil, errors.New("connection string is required")
	}

	if _, err := fs.ReadDir(migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	u, err := databaseURL(d, connStr)
	if err != nil {
		return nil, err
	}

	db := dbmate.New(u)
	db.Strict = true
	db.FS = fs
	db.MigrationsDir = []string{migrationsDir}
	db.AutoDumpSchema = false

	l = l.With(slog.String("component", "db-migrator"), slog.String("dialect", d.String()))
	db.Log = utils.NewSlogWriter(l)

	return &dbmateMigrator{db: db, l: l}, nil
}

func databaseURL(d dialect.Dialect, connStr string) (*url.URL, error) {
	raw := connStr

	if d == dialect.SQLite {
		if strings.Contains(connStr, ":memory:") || strings.Contains(connStr, "mode=memory") {
			return nil, errors.New("in-memory databases are not supported")
		}

		raw = "sqlite:" + connStr
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	return u, nil
}

// Migrate applies all pending migrations.
func (m *dbmateMigrator) Migrate() error {
	m.l.Info("Migrating database")

	if err := m.db.CreateAndMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Status lists the embedded migrations and whether they are applied.
func (m *dbmateMigrator) Status() ([]MigrationStatus, error) {
	migrations, err := m.db.FindMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	status := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		status = append(status, MigrationStatus{
			Version: mig.Version,
			File:    mig.FileName,
			Applied: mig.Applied,
		})
	}

	return status, nil
}
