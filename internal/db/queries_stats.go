package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"draft-analyzer/internal/model"
)

const entityColumns = `champion_id, patch, rank_bucket, role, games, wins, losses, win_rate,
	avg_kills, avg_deaths, avg_assists, avg_cs, avg_gold, avg_damage, avg_vision, tier, last_updated`

func scanEntity(row interface{ Scan(...any) error }) (*model.EntityAggregate, error) {
	var a model.EntityAggregate
	var updated int64
	if err := row.Scan(&a.ChampionID, &a.Patch, &a.RankBucket, &a.Role, &a.Games, &a.Wins, &a.Losses,
		&a.WinRate, &a.AvgKills, &a.AvgDeaths, &a.AvgAssists, &a.AvgCS, &a.AvgGold, &a.AvgDamage,
		&a.AvgVision, &a.Tier, &updated); err != nil {
		return nil, err
	}
	a.LastUpdated = fromMillis(updated)
	return &a, nil
}

// GetEntityAggregate returns the aggregate for key, or ErrNotFound.
func (s *Store) GetEntityAggregate(ctx context.Context, key model.EntityKey) (*model.EntityAggregate, error) {
	a, err := scanEntity(s.queryRow(ctx, `
		SELECT `+entityColumns+` FROM entity_aggregates
		WHERE champion_id = ? AND patch = ? AND rank_bucket = ? AND role = ?
	`, key.ChampionID, key.Patch, key.RankBucket, key.Role))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// PutEntityAggregate inserts or overwrites the aggregate for its key.
func (s *Store) PutEntityAggregate(ctx context.Context, a *model.EntityAggregate) error {
	return putEntity(ctx, s.conn(), a)
}

func putEntity(ctx context.Context, c conn, a *model.EntityAggregate) error {
	_, err := c.exec(ctx, `
		INSERT INTO entity_aggregates (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (champion_id, patch, rank_bucket, role) DO UPDATE SET
			games = excluded.games,
			wins = excluded.wins,
			losses = excluded.losses,
			win_rate = excluded.win_rate,
			avg_kills = excluded.avg_kills,
			avg_deaths = excluded.avg_deaths,
			avg_assists = excluded.avg_assists,
			avg_cs = excluded.avg_cs,
			avg_gold = excluded.avg_gold,
			avg_damage = excluded.avg_damage,
			avg_vision = excluded.avg_vision,
			tier = excluded.tier,
			last_updated = excluded.last_updated
	`, a.ChampionID, a.Patch, a.RankBucket, a.Role, a.Games, a.Wins, a.Losses, a.WinRate,
		a.AvgKills, a.AvgDeaths, a.AvgAssists, a.AvgCS, a.AvgGold, a.AvgDamage, a.AvgVision,
		a.Tier, toMillis(a.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", a.EntityKey, err)
	}
	return nil
}

// entityMean folds the incoming batch mean into the stored running mean,
// weighted by games on each side.
func entityMean(col string) string {
	return col + ` = CASE WHEN entity_aggregates.games + excluded.games = 0 THEN 0 ELSE
		(entity_aggregates.` + col + ` * entity_aggregates.games + excluded.` + col + ` * excluded.games)
		/ (entity_aggregates.games + excluded.games) END`
}

var addEntityQuery = `
	INSERT INTO entity_aggregates (` + entityColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (champion_id, patch, rank_bucket, role) DO UPDATE SET
		` + strings.Join([]string{
	entityMean("avg_kills"), entityMean("avg_deaths"), entityMean("avg_assists"), entityMean("avg_cs"),
	entityMean("avg_gold"), entityMean("avg_damage"), entityMean("avg_vision"),
	"games = entity_aggregates.games + excluded.games",
	"wins = entity_aggregates.wins + excluded.wins",
	"losses = entity_aggregates.losses + excluded.losses",
	"last_updated = excluded.last_updated",
}, ",\n\t\t") + `
	RETURNING ` + entityColumns

// AddEntityAggregate adds d's games, wins and losses to the stored row for
// its key in one statement, folding d's averages in by games played, and
// returns the resulting row. Win rate and tier are left as stored; callers
// recompute them and Put the row back in the same transaction.
func (s *Store) AddEntityAggregate(ctx context.Context, d *model.EntityAggregate) (*model.EntityAggregate, error) {
	return addEntity(ctx, s.conn(), d)
}

func addEntity(ctx context.Context, c conn, d *model.EntityAggregate) (*model.EntityAggregate, error) {
	a, err := scanEntity(c.queryRow(ctx, addEntityQuery,
		d.ChampionID, d.Patch, d.RankBucket, d.Role, d.Games, d.Wins, d.Losses, d.WinRate,
		d.AvgKills, d.AvgDeaths, d.AvgAssists, d.AvgCS, d.AvgGold, d.AvgDamage, d.AvgVision,
		d.Tier, toMillis(d.LastUpdated)))
	if err != nil {
		return nil, fmt.Errorf("failed to add to %s: %w", d.EntityKey, err)
	}
	return a, nil
}

// AggregateFilter narrows ListEntityAggregates. Zero fields match anything.
type AggregateFilter struct {
	ChampionID int
	Patch      string
	RankBucket string
	Role       string
	Limit      int
}

// ListEntityAggregates returns aggregates matching f, most games first.
func (s *Store) ListEntityAggregates(ctx context.Context, f AggregateFilter) ([]model.EntityAggregate, error) {
	var where []string
	var args []any
	if f.ChampionID != 0 {
		where = append(where, "champion_id = ?")
		args = append(args, f.ChampionID)
	}
	if f.Patch != "" {
		where = append(where, "patch = ?")
		args = append(args, f.Patch)
	}
	if f.RankBucket != "" {
		where = append(where, "rank_bucket = ?")
		args = append(args, f.RankBucket)
	}
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, strings.ToUpper(f.Role))
	}

	query := `SELECT ` + entityColumns + ` FROM entity_aggregates`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY games DESC, champion_id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EntityAggregate
	for rows.Next() {
		a, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// LatestEntityAggregate returns the most recently updated aggregate for a
// champion in role, across patches and rank buckets.
func (s *Store) LatestEntityAggregate(ctx context.Context, championID int, role string) (*model.EntityAggregate, error) {
	a, err := scanEntity(s.queryRow(ctx, `
		SELECT `+entityColumns+` FROM entity_aggregates
		WHERE champion_id = ? AND role = ?
		ORDER BY last_updated DESC, games DESC
		LIMIT 1
	`, championID, strings.ToUpper(role)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

const matchupColumns = `champion1_id, champion2_id, patch, rank_bucket, role, games, champion1_wins,
	champion2_wins, champion1_win_rate, champion2_win_rate, score, last_updated`

func scanMatchup(row interface{ Scan(...any) error }) (*model.MatchupAggregate, error) {
	var a model.MatchupAggregate
	var updated int64
	if err := row.Scan(&a.Champion1ID, &a.Champion2ID, &a.Patch, &a.RankBucket, &a.Role, &a.Games,
		&a.Champion1Wins, &a.Champion2Wins, &a.Champion1WinRate, &a.Champion2WinRate, &a.Score, &updated); err != nil {
		return nil, err
	}
	a.LastUpdated = fromMillis(updated)
	return &a, nil
}

// GetMatchupAggregate returns the aggregate for key, or ErrNotFound.
func (s *Store) GetMatchupAggregate(ctx context.Context, key model.MatchupKey) (*model.MatchupAggregate, error) {
	a, err := scanMatchup(s.queryRow(ctx, `
		SELECT `+matchupColumns+` FROM matchup_aggregates
		WHERE champion1_id = ? AND champion2_id = ? AND patch = ? AND rank_bucket = ? AND role = ?
	`, key.Champion1ID, key.Champion2ID, key.Patch, key.RankBucket, key.Role))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// PutMatchupAggregate inserts or overwrites the aggregate for its key.
func (s *Store) PutMatchupAggregate(ctx context.Context, a *model.MatchupAggregate) error {
	return putMatchup(ctx, s.conn(), a)
}

func putMatchup(ctx context.Context, c conn, a *model.MatchupAggregate) error {
	_, err := c.exec(ctx, `
		INSERT INTO matchup_aggregates (`+matchupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (champion1_id, champion2_id, patch, rank_bucket, role) DO UPDATE SET
			games = excluded.games,
			champion1_wins = excluded.champion1_wins,
			champion2_wins = excluded.champion2_wins,
			champion1_win_rate = excluded.champion1_win_rate,
			champion2_win_rate = excluded.champion2_win_rate,
			score = excluded.score,
			last_updated = excluded.last_updated
	`, a.Champion1ID, a.Champion2ID, a.Patch, a.RankBucket, a.Role, a.Games, a.Champion1Wins,
		a.Champion2Wins, a.Champion1WinRate, a.Champion2WinRate, a.Score, toMillis(a.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", a.MatchupKey, err)
	}
	return nil
}

// AddMatchupAggregate adds d's counts to the stored row for its key and
// returns the resulting row. Rates and score are left as stored.
func (s *Store) AddMatchupAggregate(ctx context.Context, d *model.MatchupAggregate) (*model.MatchupAggregate, error) {
	return addMatchup(ctx, s.conn(), d)
}

func addMatchup(ctx context.Context, c conn, d *model.MatchupAggregate) (*model.MatchupAggregate, error) {
	a, err := scanMatchup(c.queryRow(ctx, `
		INSERT INTO matchup_aggregates (`+matchupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (champion1_id, champion2_id, patch, rank_bucket, role) DO UPDATE SET
			games = matchup_aggregates.games + excluded.games,
			champion1_wins = matchup_aggregates.champion1_wins + excluded.champion1_wins,
			champion2_wins = matchup_aggregates.champion2_wins + excluded.champion2_wins,
			last_updated = excluded.last_updated
		RETURNING `+matchupColumns,
		d.Champion1ID, d.Champion2ID, d.Patch, d.RankBucket, d.Role, d.Games, d.Champion1Wins,
		d.Champion2Wins, d.Champion1WinRate, d.Champion2WinRate, d.Score, toMillis(d.LastUpdated)))
	if err != nil {
		return nil, fmt.Errorf("failed to add to %s: %w", d.MatchupKey, err)
	}
	return a, nil
}

const synergyColumns = `champion1_id, champion2_id, patch, rank_bucket, games, wins, losses,
	win_rate, score, synergy_type, last_updated`

func scanSynergy(row interface{ Scan(...any) error }) (*model.SynergyAggregate, error) {
	var a model.SynergyAggregate
	var updated int64
	if err := row.Scan(&a.Champion1ID, &a.Champion2ID, &a.Patch, &a.RankBucket, &a.Games, &a.Wins, &a.Losses,
		&a.WinRate, &a.Score, &a.SynergyType, &updated); err != nil {
		return nil, err
	}
	a.LastUpdated = fromMillis(updated)
	return &a, nil
}

// GetSynergyAggregate returns the aggregate for key, or ErrNotFound.
func (s *Store) GetSynergyAggregate(ctx context.Context, key model.SynergyKey) (*model.SynergyAggregate, error) {
	a, err := scanSynergy(s.queryRow(ctx, `
		SELECT `+synergyColumns+` FROM synergy_aggregates
		WHERE champion1_id = ? AND champion2_id = ? AND patch = ? AND rank_bucket = ?
	`, key.Champion1ID, key.Champion2ID, key.Patch, key.RankBucket))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// PutSynergyAggregate inserts or overwrites the aggregate for its key.
func (s *Store) PutSynergyAggregate(ctx context.Context, a *model.SynergyAggregate) error {
	return putSynergy(ctx, s.conn(), a)
}

func putSynergy(ctx context.Context, c conn, a *model.SynergyAggregate) error {
	_, err := c.exec(ctx, `
		INSERT INTO synergy_aggregates (`+synergyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (champion1_id, champion2_id, patch, rank_bucket) DO UPDATE SET
			games = excluded.games,
			wins = excluded.wins,
			losses = excluded.losses,
			win_rate = excluded.win_rate,
			score = excluded.score,
			synergy_type = excluded.synergy_type,
			last_updated = excluded.last_updated
	`, a.Champion1ID, a.Champion2ID, a.Patch, a.RankBucket, a.Games, a.Wins, a.Losses,
		a.WinRate, a.Score, a.SynergyType, toMillis(a.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", a.SynergyKey, err)
	}
	return nil
}

// AddSynergyAggregate adds d's counts to the stored row for its key and
// returns the resulting row. Win rate and score are left as stored.
func (s *Store) AddSynergyAggregate(ctx context.Context, d *model.SynergyAggregate) (*model.SynergyAggregate, error) {
	return addSynergy(ctx, s.conn(), d)
}

func addSynergy(ctx context.Context, c conn, d *model.SynergyAggregate) (*model.SynergyAggregate, error) {
	a, err := scanSynergy(c.queryRow(ctx, `
		INSERT INTO synergy_aggregates (`+synergyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (champion1_id, champion2_id, patch, rank_bucket) DO UPDATE SET
			games = synergy_aggregates.games + excluded.games,
			wins = synergy_aggregates.wins + excluded.wins,
			losses = synergy_aggregates.losses + excluded.losses,
			last_updated = excluded.last_updated
		RETURNING `+synergyColumns,
		d.Champion1ID, d.Champion2ID, d.Patch, d.RankBucket, d.Games, d.Wins, d.Losses,
		d.WinRate, d.Score, d.SynergyType, toMillis(d.LastUpdated)))
	if err != nil {
		return nil, fmt.Errorf("failed to add to %s: %w", d.SynergyKey, err)
	}
	return a, nil
}
