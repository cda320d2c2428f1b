package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"draft-analyzer/internal/db"
	"draft-analyzer/internal/discord"
	"draft-analyzer/internal/ingest"
	"draft-analyzer/internal/logging"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/riot"
)

const (
	DefaultMatchCount = 20
	DefaultWorkers    = 2
	DefaultRegion     = "na1"
)

// AccountSource is the part of the Riot API the collector walks.
type AccountSource interface {
	GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error)
	GetAccountByPUUID(ctx context.Context, puuid string) (*riot.AccountResponse, error)
	GetMatchHistory(ctx context.Context, puuid string, count int) ([]string, error)
	GetChampionMasteries(ctx context.Context, puuid string) ([]riot.MasteryResponse, error)
}

// PlayerStore persists players and their per-champion stats.
type PlayerStore interface {
	UpsertPlayer(ctx context.Context, p *model.Player) error
	PlayerParticipations(ctx context.Context, puuid string) ([]db.PlayerGame, error)
	ReplacePlayerChampions(ctx context.Context, puuid string, pcs []model.PlayerChampion) error
}

// MatchProcessor stores and merges matches by ID.
type MatchProcessor interface {
	ProcessMatches(ctx context.Context, ids []string) *ingest.BatchReport
}

// Notifier is told how a CollectPlayers run ended.
type Notifier interface {
	KeyRejected(ctx context.Context, s discord.CollectionSummary) error
	CollectionFinished(ctx context.Context, s discord.CollectionSummary) error
}

// Collector pulls a player's recent matches into the store and rebuilds
// their champion stats.
type Collector struct {
	source    AccountSource
	store     PlayerStore
	processor MatchProcessor
	region    string
	workers   int
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithRegion sets the platform recorded on collected players.
func WithRegion(region string) Option {
	return func(c *Collector) {
		if region != "" {
			c.region = region
		}
	}
}

// WithWorkers bounds how many players CollectPlayers runs at once.
func WithWorkers(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithNotifier reports the end of each CollectPlayers run.
func WithNotifier(n Notifier) Option {
	return func(c *Collector) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

func New(source AccountSource, store PlayerStore, processor MatchProcessor, opts ...Option) *Collector {
	c := &Collector{
		source:    source,
		store:     store,
		processor: processor,
		region:    DefaultRegion,
		workers:   DefaultWorkers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("component", "collector")
	return c
}

// Result is the outcome of collecting one player.
type Result struct {
	Player    model.Player        `json:"player"`
	Matches   *ingest.BatchReport `json:"matches"`
	Champions int                 `json:"champions"`
}

// SplitRiotID splits "name#tag". ok is false for anything else, which
// callers treat as a PUUID.
func SplitRiotID(s string) (gameName, tagLine string, ok bool) {
	name, tag, found := strings.Cut(s, "#")
	if !found || name == "" || tag == "" {
		return "", "", false
	}
	return name, tag, true
}

func (c *Collector) resolve(ctx context.Context, riotIDOrPUUID string) (*riot.AccountResponse, error) {
	if name, tag, ok := SplitRiotID(riotIDOrPUUID); ok {
		return c.source.GetAccountByRiotID(ctx, name, tag)
	}
	return c.source.GetAccountByPUUID(ctx, riotIDOrPUUID)
}

// CollectPlayer resolves the account, ingests up to count recent matches
// and rebuilds the player's champion stats. Individual match failures are
// reported in the result and do not fail the call.
func (c *Collector) CollectPlayer(ctx context.Context, riotIDOrPUUID string, count int) (*Result, error) {
	if count <= 0 {
		count = DefaultMatchCount
	}

	account, err := c.resolve(ctx, riotIDOrPUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", riotIDOrPUUID, err)
	}

	now := c.now()
	player := model.Player{
		PUUID:        account.PUUID,
		GameName:     account.GameName,
		TagLine:      account.TagLine,
		Region:       c.region,
		LastUpdated:  now,
		LastAccessed: now,
	}
	if err := c.store.UpsertPlayer(ctx, &player); err != nil {
		return nil, err
	}

	ids, err := c.source.GetMatchHistory(ctx, account.PUUID, count)
	if err != nil {
		return nil, fmt.Errorf("failed to get match history for %s: %w", riotIDOrPUUID, err)
	}
	report := c.processor.ProcessMatches(ctx, ids)

	games, err := c.store.PlayerParticipations(ctx, account.PUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load games for %s: %w", account.PUUID, err)
	}
	masteries, err := c.source.GetChampionMasteries(ctx, account.PUUID)
	if err != nil {
		if errors.Is(err, riot.ErrUnauthorized) {
			return nil, err
		}
		c.logger.Warn("mastery unavailable", "puuid", account.PUUID, "error", err)
		masteries = nil
	}

	pcs := BuildPlayerChampions(account.PUUID, games, masteries)
	if err := c.store.ReplacePlayerChampions(ctx, account.PUUID, pcs); err != nil {
		return nil, err
	}

	c.logger.Info("player collected", "player", riotIDOrPUUID, "matches", len(ids),
		"new", report.Processed, "failed", len(report.Failures), "champions", len(pcs))
	return &Result{Player: player, Matches: report, Champions: len(pcs)}, nil
}

// CollectPlayers collects each player as an independent unit. An expired
// or invalid API key stops the remaining players since every call would fail.
func (c *Collector) CollectPlayers(ctx context.Context, players []string, count int) *ingest.BatchReport {
	start := c.now()
	report := &ingest.BatchReport{}
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		newMatches atomic.Int64
		rejected   sync.Once
		keyErr     error
	)
	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for _, p := range players {
		g.Go(func() error {
			if runCtx.Err() != nil {
				report.Fail(p, context.Cause(runCtx))
				return nil
			}
			res, err := c.CollectPlayer(runCtx, p, count)
			switch {
			case errors.Is(err, riot.ErrUnauthorized):
				rejected.Do(func() {
					c.logger.Error("api key rejected, stopping collection", "error", err)
					keyErr = err
					cancel(err)
				})
			case err != nil:
				c.logger.Warn("player failed", "player", p, "error", err)
			default:
				newMatches.Add(int64(res.Matches.Processed))
			}
			report.Record(p, err == nil, err)
			return nil
		})
	}
	g.Wait()

	c.notify(ctx, keyErr != nil, discord.CollectionSummary{
		Players:    len(players),
		Failed:     len(report.Failures),
		NewMatches: int(newMatches.Load()),
		Runtime:    c.now().Sub(start),
	})
	return report
}

func (c *Collector) notify(ctx context.Context, keyRejected bool, s discord.CollectionSummary) {
	if c.notifier == nil {
		return
	}
	// The run context may already be cancelled by a signal; the alert
	// should still go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	var err error
	if keyRejected {
		err = c.notifier.KeyRejected(ctx, s)
	} else {
		err = c.notifier.CollectionFinished(ctx, s)
	}
	if err != nil {
		c.logger.Warn("notification failed", "error", err)
	}
}

// BuildPlayerChampions folds a player's games and mastery into one row per
// champion. Champions with mastery but no stored games get a row with zero
// games. Rows are ordered by games played, then champion ID.
func BuildPlayerChampions(puuid string, games []db.PlayerGame, masteries []riot.MasteryResponse) []model.PlayerChampion {
	type totals struct {
		pc                     model.PlayerChampion
		kills, deaths, assists int
		cs                     int
	}
	byChamp := make(map[int]*totals)
	get := func(id int) *totals {
		t, ok := byChamp[id]
		if !ok {
			t = &totals{pc: model.PlayerChampion{PUUID: puuid, ChampionID: id}}
			byChamp[id] = t
		}
		return t
	}

	for _, g := range games {
		t := get(g.ChampionID)
		t.pc.GamesPlayed++
		if g.Win {
			t.pc.Wins++
		} else {
			t.pc.Losses++
		}
		t.kills += g.Kills
		t.deaths += g.Deaths
		t.assists += g.Assists
		t.cs += g.CS
		if g.GameStart.After(t.pc.LastPlayed) {
			t.pc.LastPlayed = g.GameStart
		}
	}

	for _, m := range masteries {
		t := get(m.ChampionID)
		t.pc.MasteryLevel = m.ChampionLevel
		t.pc.MasteryPoints = m.ChampionPoints
		if t.pc.LastPlayed.IsZero() && m.LastPlayTime > 0 {
			t.pc.LastPlayed = time.UnixMilli(m.LastPlayTime)
		}
	}

	out := make([]model.PlayerChampion, 0, len(byChamp))
	for _, t := range byChamp {
		if n := float64(t.pc.GamesPlayed); n > 0 {
			t.pc.WinRate = float64(t.pc.Wins) / n * 100
			t.pc.AvgKills = float64(t.kills) / n
			t.pc.AvgDeaths = float64(t.deaths) / n
			t.pc.AvgAssists = float64(t.assists) / n
			t.pc.AvgCS = float64(t.cs) / n
		}
		out = append(out, t.pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GamesPlayed != out[j].GamesPlayed {
			return out[i].GamesPlayed > out[j].GamesPlayed
		}
		return out[i].ChampionID < out[j].ChampionID
	})
	return out
}
