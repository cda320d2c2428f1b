package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"draft-analyzer/internal/model"
)

// UpsertChampions writes the champion catalog in one transaction.
func (s *Store) UpsertChampions(ctx context.Context, champions []model.Champion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO champions (champion_id, champion_key, name, title, tags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (champion_id) DO UPDATE SET
			champion_key = excluded.champion_key,
			name = excluded.name,
			title = excluded.title,
			tags = excluded.tags
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range champions {
		if _, err := stmt.ExecContext(ctx, c.ChampionID, c.Key, c.Name, c.Title, strings.Join(c.Tags, ",")); err != nil {
			return fmt.Errorf("failed to upsert champion %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

func scanChampion(row interface{ Scan(...any) error }) (*model.Champion, error) {
	var c model.Champion
	var tags string
	if err := row.Scan(&c.ChampionID, &c.Key, &c.Name, &c.Title, &tags); err != nil {
		return nil, err
	}
	if tags != "" {
		c.Tags = strings.Split(tags, ",")
	}
	return &c, nil
}

func (s *Store) champions(ctx context.Context, query string, args ...any) ([]model.Champion, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Champion
	for rows.Next() {
		c, err := scanChampion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetChampion looks a champion up by numeric ID.
func (s *Store) GetChampion(ctx context.Context, championID int) (*model.Champion, error) {
	c, err := scanChampion(s.queryRow(ctx, `
		SELECT champion_id, champion_key, name, title, tags FROM champions WHERE champion_id = ?
	`, championID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListChampions returns the whole catalog ordered by name.
func (s *Store) ListChampions(ctx context.Context) ([]model.Champion, error) {
	return s.champions(ctx, `SELECT champion_id, champion_key, name, title, tags FROM champions ORDER BY name`)
}

// KnownChampionIDs returns the set of catalog IDs.
func (s *Store) KnownChampionIDs(ctx context.Context) (map[int]bool, error) {
	rows, err := s.query(ctx, `SELECT champion_id FROM champions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ChampionsForRole returns champions that have aggregates in role. An
// empty or ALL role, or a role nobody has been seen in, gives the whole
// catalog.
func (s *Store) ChampionsForRole(ctx context.Context, role string) ([]model.Champion, error) {
	role = strings.ToUpper(role)
	if role == "" || role == model.RoleAll {
		return s.ListChampions(ctx)
	}

	champs, err := s.champions(ctx, `
		SELECT champion_id, champion_key, name, title, tags FROM champions
		WHERE champion_id IN (SELECT DISTINCT champion_id FROM entity_aggregates WHERE role = ?)
		ORDER BY name
	`, role)
	if err != nil {
		return nil, err
	}
	if len(champs) == 0 {
		return s.ListChampions(ctx)
	}
	return champs, nil
}
