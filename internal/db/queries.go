package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"draft-analyzer/internal/model"
)

// InsertMatch stores a match and its participants in one transaction.
// It returns ErrDuplicate if the match ID is already stored.
func (s *Store) InsertMatch(ctx context.Context, m *model.Match) error {
	return s.InTx(ctx, func(w Writer) error {
		return w.InsertMatch(ctx, m)
	})
}

func insertMatch(ctx context.Context, c conn, m *model.Match) error {
	res, err := c.exec(ctx, `
		INSERT INTO matches (match_id, game_mode, game_type, game_start, game_duration, game_version, queue_id, platform_id, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO NOTHING
	`, m.MatchID, m.GameMode, m.GameType, toMillis(m.GameStart), m.GameDuration, m.GameVersion,
		m.QueueID, m.PlatformID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", m.MatchID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicate
	}

	const insert = `
		INSERT INTO participants (
			match_id, participant_id, puuid, game_name, tag_line, team_id, champion_id, champion_name,
			individual_position, team_position, win, kills, deaths, assists, cs, gold_earned,
			damage_dealt, damage_taken, vision_score, wards_placed, wards_killed, champ_level, items
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, p := range m.Participants {
		items, err := json.Marshal(p.Items)
		if err != nil {
			return err
		}
		if p.Items == nil {
			items = []byte("[]")
		}
		_, err = c.exec(ctx, insert,
			m.MatchID, p.ParticipantID, p.PUUID, p.GameName, p.TagLine, p.TeamID, p.ChampionID, p.ChampionName,
			p.IndividualPosition, p.TeamPosition, p.Win, p.Kills, p.Deaths, p.Assists, p.CS, p.GoldEarned,
			p.DamageDealt, p.DamageTaken, p.VisionScore, p.WardsPlaced, p.WardsKilled, p.ChampLevel, string(items))
		if err != nil {
			return fmt.Errorf("failed to insert participant %d of %s: %w", p.ParticipantID, m.MatchID, err)
		}
	}
	return nil
}

// MatchExists checks if a match already exists in the database
func (s *Store) MatchExists(ctx context.Context, matchID string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM matches WHERE match_id = ?`, matchID).Scan(&n)
	return n > 0, err
}

// MatchIDs returns the IDs of every match ingested at or after since.
func (s *Store) MatchIDs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.query(ctx, `SELECT match_id FROM matches WHERE ingested_at >= ?`, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const matchColumns = `match_id, game_mode, game_type, game_start, game_duration, game_version, queue_id, platform_id`

func scanMatch(row interface{ Scan(...any) error }) (*model.Match, error) {
	var m model.Match
	var start int64
	if err := row.Scan(&m.MatchID, &m.GameMode, &m.GameType, &start, &m.GameDuration,
		&m.GameVersion, &m.QueueID, &m.PlatformID); err != nil {
		return nil, err
	}
	m.GameStart = fromMillis(start)
	return &m, nil
}

const participantColumns = `match_id, participant_id, puuid, game_name, tag_line, team_id, champion_id, champion_name,
	individual_position, team_position, win, kills, deaths, assists, cs, gold_earned,
	damage_dealt, damage_taken, vision_score, wards_placed, wards_killed, champ_level, items`

func scanParticipant(row interface{ Scan(...any) error }, extra ...any) (*model.Participant, error) {
	var p model.Participant
	var items string
	dest := []any{&p.MatchID, &p.ParticipantID, &p.PUUID, &p.GameName, &p.TagLine, &p.TeamID, &p.ChampionID,
		&p.ChampionName, &p.IndividualPosition, &p.TeamPosition, &p.Win, &p.Kills, &p.Deaths, &p.Assists,
		&p.CS, &p.GoldEarned, &p.DamageDealt, &p.DamageTaken, &p.VisionScore, &p.WardsPlaced,
		&p.WardsKilled, &p.ChampLevel, &items}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if items != "" {
		if err := json.Unmarshal([]byte(items), &p.Items); err != nil {
			return nil, fmt.Errorf("bad items for %s/%d: %w", p.MatchID, p.ParticipantID, err)
		}
	}
	return &p, nil
}

// GetMatch returns a match with all participants ordered by participant ID.
func (s *Store) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	m, err := scanMatch(s.queryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE match_id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `SELECT `+participantColumns+` FROM participants WHERE match_id = ? ORDER BY participant_id`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		m.Participants = append(m.Participants, *p)
	}
	return m, rows.Err()
}

// RecentMatches returns the most recently ingested matches, without participants.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]model.Match, error) {
	rows, err := s.query(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY ingested_at DESC, match_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// UpsertPlayer creates or refreshes a player. LastAccessed is kept if the
// incoming value is zero.
func (s *Store) UpsertPlayer(ctx context.Context, p *model.Player) error {
	_, err := s.exec(ctx, `
		INSERT INTO players (puuid, game_name, tag_line, region, last_updated, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (puuid) DO UPDATE SET
			game_name = excluded.game_name,
			tag_line = excluded.tag_line,
			region = excluded.region,
			last_updated = excluded.last_updated,
			last_accessed = CASE WHEN excluded.last_accessed = 0 THEN players.last_accessed ELSE excluded.last_accessed END
	`, p.PUUID, p.GameName, p.TagLine, p.Region, toMillis(p.LastUpdated), toMillis(p.LastAccessed))
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", p.PUUID, err)
	}
	return nil
}

// GetPlayer looks a player up by PUUID.
func (s *Store) GetPlayer(ctx context.Context, puuid string) (*model.Player, error) {
	var p model.Player
	var updated, accessed int64
	err := s.queryRow(ctx, `
		SELECT puuid, game_name, tag_line, region, last_updated, last_accessed
		FROM players WHERE puuid = ?
	`, puuid).Scan(&p.PUUID, &p.GameName, &p.TagLine, &p.Region, &updated, &accessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.LastUpdated = fromMillis(updated)
	p.LastAccessed = fromMillis(accessed)
	return &p, nil
}

// TouchPlayer records that a player was looked at.
func (s *Store) TouchPlayer(ctx context.Context, puuid string, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE players SET last_accessed = ? WHERE puuid = ?`, toMillis(at), puuid)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStalePlayers removes players not accessed since before, together
// with their champion rows. It returns the number of players removed.
func (s *Store) DeleteStalePlayers(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cutoff := before.UnixMilli()
	// SQLite leaves foreign keys off by default, so the cascade is spelled out.
	if _, err := tx.ExecContext(ctx, s.rebind(`
		DELETE FROM player_champions
		WHERE puuid IN (SELECT puuid FROM players WHERE last_accessed < ?)
	`), cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete player champions: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM players WHERE last_accessed < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete players: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// PlayerGame is one of a player's participations with its match start time.
type PlayerGame struct {
	model.Participant
	GameStart time.Time
}

// PlayerParticipations returns every stored game the player took part in.
func (s *Store) PlayerParticipations(ctx context.Context, puuid string) ([]PlayerGame, error) {
	rows, err := s.query(ctx, `
		SELECT p.match_id, p.participant_id, p.puuid, p.game_name, p.tag_line, p.team_id, p.champion_id, p.champion_name,
			p.individual_position, p.team_position, p.win, p.kills, p.deaths, p.assists, p.cs, p.gold_earned,
			p.damage_dealt, p.damage_taken, p.vision_score, p.wards_placed, p.wards_killed, p.champ_level, p.items,
			m.game_start
		FROM participants p
		JOIN matches m ON m.match_id = p.match_id
		WHERE p.puuid = ?
		ORDER BY m.game_start DESC
	`, puuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []PlayerGame
	for rows.Next() {
		var start int64
		p, err := scanParticipant(rows, &start)
		if err != nil {
			return nil, err
		}
		games = append(games, PlayerGame{Participant: *p, GameStart: fromMillis(start)})
	}
	return games, rows.Err()
}

// ReplacePlayerChampions swaps a player's champion rows for pcs.
func (s *Store) ReplacePlayerChampions(ctx context.Context, puuid string, pcs []model.PlayerChampion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM player_champions WHERE puuid = ?`), puuid); err != nil {
		return err
	}

	insert := s.rebind(`
		INSERT INTO player_champions (
			puuid, champion_id, games_played, wins, losses, win_rate, avg_kills, avg_deaths,
			avg_assists, avg_cs, mastery_level, mastery_points, last_played
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, pc := range pcs {
		if _, err := tx.ExecContext(ctx, insert, puuid, pc.ChampionID, pc.GamesPlayed, pc.Wins, pc.Losses,
			pc.WinRate, pc.AvgKills, pc.AvgDeaths, pc.AvgAssists, pc.AvgCS, pc.MasteryLevel,
			pc.MasteryPoints, toMillis(pc.LastPlayed)); err != nil {
			return fmt.Errorf("failed to insert champion %d for %s: %w", pc.ChampionID, puuid, err)
		}
	}
	return tx.Commit()
}

// PlayerChampions returns a player's champion rows, most played first.
func (s *Store) PlayerChampions(ctx context.Context, puuid string) ([]model.PlayerChampion, error) {
	rows, err := s.query(ctx, `
		SELECT puuid, champion_id, games_played, wins, losses, win_rate, avg_kills, avg_deaths,
			avg_assists, avg_cs, mastery_level, mastery_points, last_played
		FROM player_champions
		WHERE puuid = ?
		ORDER BY games_played DESC, champion_id
	`, puuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlayerChampion
	for rows.Next() {
		var pc model.PlayerChampion
		var last int64
		if err := rows.Scan(&pc.PUUID, &pc.ChampionID, &pc.GamesPlayed, &pc.Wins, &pc.Losses, &pc.WinRate,
			&pc.AvgKills, &pc.AvgDeaths, &pc.AvgAssists, &pc.AvgCS, &pc.MasteryLevel,
			&pc.MasteryPoints, &last); err != nil {
			return nil, err
		}
		pc.LastPlayed = fromMillis(last)
		out = append(out, pc)
	}
	return out, rows.Err()
}

// Overview counts what the store holds.
func (s *Store) Overview(ctx context.Context) (*model.Overview, error) {
	var o model.Overview
	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&o.Matches, `SELECT COUNT(*) FROM matches`, nil},
		{&o.Participants, `SELECT COUNT(*) FROM participants`, nil},
		{&o.Players, `SELECT COUNT(*) FROM players`, nil},
		{&o.Champions, `SELECT COUNT(*) FROM champions`, nil},
		{&o.EntityAggregates, `SELECT COUNT(*) FROM entity_aggregates`, nil},
		{&o.MatchupAggregates, `SELECT COUNT(*) FROM matchup_aggregates`, nil},
		{&o.SynergyAggregates, `SELECT COUNT(*) FROM synergy_aggregates`, nil},
		{&o.MatchesLast24h, `SELECT COUNT(*) FROM matches WHERE ingested_at >= ?`, []any{time.Now().Add(-24 * time.Hour).UnixMilli()}},
	}
	for _, c := range counts {
		if err := s.queryRow(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}
	return &o, nil
}
