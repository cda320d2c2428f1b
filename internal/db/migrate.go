package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date. dsn is only used for Postgres,
// where golang-migrate opens its own connection.
func (s *Store) Migrate(ctx context.Context, dsn string) error {
	switch s.driver {
	case "sqlite":
		return s.migrateSQLite()
	case "postgres":
		return migratePostgres(dsn)
	case "libsql":
		return s.CreateTables(ctx)
	default:
		return fmt.Errorf("no migration path for driver %q", s.driver)
	}
}

func migrationSource() (source.Driver, error) {
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	src, err := iofs.New(dir, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	return src, nil
}

func (s *Store) migrateSQLite() error {
	src, err := migrationSource()
	if err != nil {
		return err
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	// The migrate instance is not closed: closing it would close s.db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	return up(m)
}

func migratePostgres(dsn string) error {
	src, err := migrationSource()
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgxURL(dsn))
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	return up(m)
}

func up(m *migrate.Migrate) error {
	err := m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// pgxURL swaps the scheme so golang-migrate picks its pgx v5 driver.
func pgxURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// schemaStatements splits the initial migration into single statements
// for drivers golang-migrate does not cover.
func schemaStatements() ([]string, error) {
	data, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, stmt := range strings.Split(string(data), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out, nil
}
