package stats

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"draft-analyzer/internal/logging"
	"draft-analyzer/internal/model"
)

// AggregateWriter is the persistence the merger writes through. Add*
// folds a delta into the stored row atomically and returns the result;
// Put* overwrites the derived columns. Both run inside the caller's
// transaction, so the row stays locked between them.
type AggregateWriter interface {
	AddEntityAggregate(ctx context.Context, d *model.EntityAggregate) (*model.EntityAggregate, error)
	PutEntityAggregate(ctx context.Context, agg *model.EntityAggregate) error
	AddMatchupAggregate(ctx context.Context, d *model.MatchupAggregate) (*model.MatchupAggregate, error)
	PutMatchupAggregate(ctx context.Context, agg *model.MatchupAggregate) error
	AddSynergyAggregate(ctx context.Context, d *model.SynergyAggregate) (*model.SynergyAggregate, error)
	PutSynergyAggregate(ctx context.Context, agg *model.SynergyAggregate) error
}

// Merger folds match deltas into the persisted aggregates. Counters are
// added in SQL, so merges from separate processes sharing a database do
// not overwrite each other. Merging is not idempotent: callers must
// de-duplicate matches first.
type Merger struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewMerger creates a merger.
func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{
		now:    time.Now,
		logger: logging.OrDiscard(logger).With("component", "merger"),
	}
}

// Merge applies every delta in d through w and stops at the first
// failure, leaving the caller to roll back. Keys are visited in a fixed
// order so concurrent transactions lock rows in the same sequence.
func (m *Merger) Merge(ctx context.Context, w AggregateWriter, d *Deltas) error {
	now := m.now()

	entities := slices.SortedFunc(slices.Values(d.Entities), func(a, b EntityDelta) int {
		return strings.Compare(a.Key.String(), b.Key.String())
	})
	for _, ed := range entities {
		if err := mergeEntity(ctx, w, ed, now); err != nil {
			m.logger.Warn("merge failed", "match", d.MatchID, "key", ed.Key.String(), "error", err)
			return err
		}
	}

	matchups := slices.SortedFunc(slices.Values(d.Matchups), func(a, b MatchupDelta) int {
		return strings.Compare(a.Key.String(), b.Key.String())
	})
	for _, md := range matchups {
		if err := mergeMatchup(ctx, w, md, now); err != nil {
			m.logger.Warn("merge failed", "match", d.MatchID, "key", md.Key.String(), "error", err)
			return err
		}
	}

	synergies := slices.SortedFunc(slices.Values(d.Synergies), func(a, b SynergyDelta) int {
		return strings.Compare(a.Key.String(), b.Key.String())
	})
	for _, sd := range synergies {
		if err := mergeSynergy(ctx, w, sd, now); err != nil {
			m.logger.Warn("merge failed", "match", d.MatchID, "key", sd.Key.String(), "error", err)
			return err
		}
	}
	return nil
}

func mergeEntity(ctx context.Context, w AggregateWriter, d EntityDelta, now time.Time) error {
	total, err := w.AddEntityAggregate(ctx, MergeEntity(nil, d, now))
	if err != nil {
		return fmt.Errorf("add %s: %w", d.Key, err)
	}
	deriveEntity(total, now)
	if err := w.PutEntityAggregate(ctx, total); err != nil {
		return fmt.Errorf("save %s: %w", d.Key, err)
	}
	return nil
}

func mergeMatchup(ctx context.Context, w AggregateWriter, d MatchupDelta, now time.Time) error {
	total, err := w.AddMatchupAggregate(ctx, MergeMatchup(nil, d, now))
	if err != nil {
		return fmt.Errorf("add %s: %w", d.Key, err)
	}
	deriveMatchup(total, now)
	if err := w.PutMatchupAggregate(ctx, total); err != nil {
		return fmt.Errorf("save %s: %w", d.Key, err)
	}
	return nil
}

func mergeSynergy(ctx context.Context, w AggregateWriter, d SynergyDelta, now time.Time) error {
	total, err := w.AddSynergyAggregate(ctx, MergeSynergy(nil, d, now))
	if err != nil {
		return fmt.Errorf("add %s: %w", d.Key, err)
	}
	deriveSynergy(total, now)
	if err := w.PutSynergyAggregate(ctx, total); err != nil {
		return fmt.Errorf("save %s: %w", d.Key, err)
	}
	return nil
}

// MergeEntity returns existing (which may be nil) with d folded in.
func MergeEntity(existing *model.EntityAggregate, d EntityDelta, now time.Time) *model.EntityAggregate {
	out := &model.EntityAggregate{EntityKey: d.Key}
	if existing != nil {
		*out = *existing
	}

	oldGames := out.Games
	out.Games += d.Games
	out.Wins += d.Wins
	out.Losses += d.Losses

	out.AvgKills = weighted(out.AvgKills, oldGames, d.Sums.Kills, d.Games)
	out.AvgDeaths = weighted(out.AvgDeaths, oldGames, d.Sums.Deaths, d.Games)
	out.AvgAssists = weighted(out.AvgAssists, oldGames, d.Sums.Assists, d.Games)
	out.AvgCS = weighted(out.AvgCS, oldGames, d.Sums.CS, d.Games)
	out.AvgGold = weighted(out.AvgGold, oldGames, d.Sums.Gold, d.Games)
	out.AvgDamage = weighted(out.AvgDamage, oldGames, d.Sums.Damage, d.Games)
	out.AvgVision = weighted(out.AvgVision, oldGames, d.Sums.Vision, d.Games)

	deriveEntity(out, now)
	return out
}

// MergeMatchup returns existing (which may be nil) with d folded in.
func MergeMatchup(existing *model.MatchupAggregate, d MatchupDelta, now time.Time) *model.MatchupAggregate {
	out := &model.MatchupAggregate{MatchupKey: d.Key}
	if existing != nil {
		*out = *existing
	}

	out.Games += d.Games
	out.Champion1Wins += d.Champion1Wins
	out.Champion2Wins += d.Champion2Wins
	deriveMatchup(out, now)
	return out
}

// MergeSynergy returns existing (which may be nil) with d folded in.
func MergeSynergy(existing *model.SynergyAggregate, d SynergyDelta, now time.Time) *model.SynergyAggregate {
	out := &model.SynergyAggregate{SynergyKey: d.Key}
	if existing != nil {
		*out = *existing
	}

	out.Games += d.Games
	out.Wins += d.Wins
	out.Losses += d.Losses
	deriveSynergy(out, now)
	return out
}

// derive* recompute the columns that follow from the counters.

func deriveEntity(a *model.EntityAggregate, now time.Time) {
	a.WinRate = rate(a.Wins, a.Games)
	a.Tier = TierFor(a.WinRate)
	a.LastUpdated = now
}

func deriveMatchup(a *model.MatchupAggregate, now time.Time) {
	a.Champion1WinRate = rate(a.Champion1Wins, a.Games)
	a.Champion2WinRate = rate(a.Champion2Wins, a.Games)
	a.Score = MatchupScore(a.Champion1WinRate)
	a.LastUpdated = now
}

func deriveSynergy(a *model.SynergyAggregate, now time.Time) {
	a.WinRate = rate(a.Wins, a.Games)
	a.Score = SynergyScore(a.WinRate)
	a.SynergyType = model.SynergyTypeTeam
	a.LastUpdated = now
}

// TierFor maps a win rate percentage onto the 1-5 tier scale.
func TierFor(winRate float64) int {
	switch {
	case winRate >= 55:
		return 5
	case winRate >= 52:
		return 4
	case winRate >= 49:
		return 3
	case winRate >= 46:
		return 2
	default:
		return 1
	}
}

// MatchupScore maps champion 1's win rate onto [-1, 1].
func MatchupScore(winRate float64) float64 {
	return (winRate - 50) / 50
}

// SynergyScore maps a pair's win rate onto [0, 1].
func SynergyScore(winRate float64) float64 {
	return clamp01((winRate-50)/50 + 0.5)
}

func weighted(oldAvg float64, oldGames int, batchSum float64, batchGames int) float64 {
	total := oldGames + batchGames
	if total == 0 {
		return 0
	}
	return (oldAvg*float64(oldGames) + batchSum) / float64(total)
}

func rate(wins, games int) float64 {
	if games == 0 {
		return 0
	}
	return float64(wins) / float64(games) * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
