package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// openLibSQL connects to a Turso (libsql) database.
func openLibSQL(ctx context.Context, url, authToken string) (*Store, error) {
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Turso: %w", err)
	}

	return &Store{db: db, driver: "libsql"}, nil
}

// CreateTables creates the schema if it doesn't exist. Used for libsql,
// which golang-migrate has no driver for; every statement is idempotent.
func (s *Store) CreateTables(ctx context.Context) error {
	stmts, err := schemaStatements()
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// ResetAggregates deletes every aggregate row. Matches and players are kept
// so aggregates can be rebuilt from the archive.
func (s *Store) ResetAggregates(ctx context.Context) error {
	tables := []string{"entity_aggregates", "matchup_aggregates", "synergy_aggregates"}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
