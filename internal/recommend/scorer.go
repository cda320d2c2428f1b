package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"draft-analyzer/internal/db"
	"draft-analyzer/internal/logging"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/ugg"
)

const (
	DefaultLimit   = 10
	DefaultWorkers = 4

	weightComfort = 0.4
	weightSynergy = 0.3
	weightMatchup = 0.2
	weightMeta    = 0.1

	neutral        = 0.5
	neverPlayed    = 0.3
	comfortGames   = 50
	comfortMastery = 7
)

// Store is the persisted data the scorer reads.
type Store interface {
	GetPlayer(ctx context.Context, puuid string) (*model.Player, error)
	TouchPlayer(ctx context.Context, puuid string, at time.Time) error
	PlayerChampions(ctx context.Context, puuid string) ([]model.PlayerChampion, error)
	ChampionsForRole(ctx context.Context, role string) ([]model.Champion, error)
	LatestEntityAggregate(ctx context.Context, championID int, role string) (*model.EntityAggregate, error)
}

// ExternalStats is the third-party data the scorer blends in. A false
// second return means no data.
type ExternalStats interface {
	GoodMatchups(ctx context.Context, champion string) ([]ugg.CounterData, bool)
	Synergy(ctx context.Context, champion string) (map[string]float64, bool)
	TierList(ctx context.Context, role string) (map[string]int, bool)
}

// Request describes one draft position to fill.
type Request struct {
	PUUID     string   `json:"puuid"`
	Team      []string `json:"team,omitempty"`      // allied champion names
	Opponents []string `json:"opponents,omitempty"` // enemy champion names
	Role      string   `json:"role,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// Result is one scored candidate.
type Result struct {
	ChampionID   int     `json:"championId"`
	ChampionName string  `json:"championName"`
	Score        float64 `json:"score"`
	Comfort      float64 `json:"comfort"`
	Synergy      float64 `json:"synergy"`
	Matchup      float64 `json:"matchup"`
	Meta         float64 `json:"meta"`
	Reason       string  `json:"reason"`
}

// Scorer ranks candidate champions for a player.
type Scorer struct {
	store   Store
	stats   ExternalStats
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Scorer)

// WithWorkers bounds how many candidates are scored at once.
func WithWorkers(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

func NewScorer(store Store, stats ExternalStats, opts ...Option) *Scorer {
	s := &Scorer{
		store:   store,
		stats:   stats,
		workers: DefaultWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).With("component", "recommend")
	return s
}

// Recommend returns the top candidates for req, best first. An unknown
// player gets an empty list. Missing third-party data never fails the
// request; the affected signal falls back to neutral.
func (s *Scorer) Recommend(ctx context.Context, req Request) ([]Result, error) {
	if _, err := s.store.GetPlayer(ctx, req.PUUID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return []Result{}, nil
		}
		return nil, fmt.Errorf("failed to load player %s: %w", req.PUUID, err)
	}

	history, err := s.store.PlayerChampions(ctx, req.PUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load champion history for %s: %w", req.PUUID, err)
	}
	played := make(map[int]model.PlayerChampion, len(history))
	for _, pc := range history {
		played[pc.ChampionID] = pc
	}

	candidates, err := s.store.ChampionsForRole(ctx, req.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	picked := make(map[string]bool, len(req.Team)+len(req.Opponents))
	for _, name := range append(append([]string{}, req.Team...), req.Opponents...) {
		picked[ugg.Slug(name)] = true
	}

	// The tier list is per role; without one, meta comes from the
	// all-roles aggregate.
	tierBySlug := map[string]int{}
	if req.Role != "" {
		tiers, _ := s.stats.TierList(ctx, req.Role)
		for name, tier := range tiers {
			tierBySlug[ugg.Slug(name)] = tier
		}
	}

	var pool []model.Champion
	for _, c := range candidates {
		if !picked[ugg.Slug(c.Name)] {
			pool = append(pool, c)
		}
	}

	results := make([]Result, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := Result{ChampionID: c.ChampionID, ChampionName: c.Name}
			if len(history) == 0 {
				r.Comfort = neutral
			} else {
				pc, ok := played[c.ChampionID]
				r.Comfort = Comfort(pc, ok)
			}
			r.Synergy = s.synergy(gctx, c.Name, req.Team)
			r.Matchup = s.matchup(gctx, c.Name, req.Opponents)
			r.Meta = s.meta(gctx, c, req.Role, tierBySlug)
			r.Score = Score(r.Comfort, r.Synergy, r.Matchup, r.Meta)
			r.Reason = Reason(r.Comfort, r.Synergy, r.Matchup, r.Meta)
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChampionName < results[j].ChampionName
	})
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}

	if err := s.store.TouchPlayer(ctx, req.PUUID, s.now()); err != nil {
		s.logger.Warn("failed to touch player", "puuid", req.PUUID, "error", err)
	}
	s.logger.Debug("recommendations built", "puuid", req.PUUID, "role", req.Role,
		"candidates", len(pool), "returned", len(results))
	return results, nil
}

func (s *Scorer) synergy(ctx context.Context, champion string, team []string) float64 {
	if len(team) == 0 {
		return neutral
	}
	data, ok := s.stats.Synergy(ctx, champion)
	if !ok || len(data) == 0 {
		return neutral
	}
	bySlug := make(map[string]float64, len(data))
	for name, wr := range data {
		bySlug[ugg.Slug(name)] = wr
	}
	return averagePercent(team, bySlug)
}

func (s *Scorer) matchup(ctx context.Context, champion string, opponents []string) float64 {
	if len(opponents) == 0 {
		return neutral
	}
	counters, ok := s.stats.GoodMatchups(ctx, champion)
	if !ok || len(counters) == 0 {
		return neutral
	}
	bySlug := make(map[string]float64, len(counters))
	for _, c := range counters {
		slug := ugg.Slug(c.ChampionName)
		if _, dup := bySlug[slug]; !dup {
			bySlug[slug] = c.WinRate
		}
	}
	return averagePercent(opponents, bySlug)
}

func (s *Scorer) meta(ctx context.Context, c model.Champion, role string, tiers map[string]int) float64 {
	if tier, ok := tiers[ugg.Slug(c.Name)]; ok && tier > 0 {
		return Meta(tier)
	}
	if role == "" {
		role = model.RoleAll
	}
	agg, err := s.store.LatestEntityAggregate(ctx, c.ChampionID, role)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("aggregate tier unavailable", "champion", c.ChampionID, "error", err)
		}
		return neutral
	}
	return Meta(agg.Tier)
}

// averagePercent averages the win rates of names found in data, scaled to
// [0,1]. Names with no entry are ignored; none found is neutral.
func averagePercent(names []string, data map[string]float64) float64 {
	var sum float64
	var n int
	for _, name := range names {
		if wr, ok := data[ugg.Slug(name)]; ok {
			sum += wr / 100
			n++
		}
	}
	if n == 0 {
		return neutral
	}
	return sum / float64(n)
}

// Comfort scores a player's experience on one champion. ok is false when
// the player has history but never played it.
func Comfort(pc model.PlayerChampion, ok bool) float64 {
	if !ok {
		return neverPlayed
	}
	games := min(float64(pc.GamesPlayed)/comfortGames, 1)
	mastery := min(float64(pc.MasteryLevel)/comfortMastery, 1)
	return games*0.4 + pc.WinRate/100*0.4 + mastery*0.2
}

// Meta maps a 1-5 tier to [0,1]. Unknown tiers are neutral.
func Meta(tier int) float64 {
	if tier < 1 || tier > 5 {
		return neutral
	}
	return float64(tier) / 5
}

func Score(comfort, synergy, matchup, meta float64) float64 {
	return weightComfort*comfort + weightSynergy*synergy + weightMatchup*matchup + weightMeta*meta
}

// Reason explains the sub-scores that stand out.
func Reason(comfort, synergy, matchup, meta float64) string {
	var parts []string
	switch {
	case comfort > 0.7:
		parts = append(parts, "You have high experience with this champion")
	case comfort < 0.3:
		parts = append(parts, "You have limited experience with this champion")
	}
	switch {
	case synergy > 0.6:
		parts = append(parts, "Great synergy with your team composition")
	case synergy < 0.4:
		parts = append(parts, "Poor synergy with your team composition")
	}
	switch {
	case matchup > 0.6:
		parts = append(parts, "Strong against opponent champions")
	case matchup < 0.4:
		parts = append(parts, "Weak against opponent champions")
	}
	if meta > 0.7 {
		parts = append(parts, "Currently strong in the meta")
	}
	return strings.Join(parts, ". ")
}
