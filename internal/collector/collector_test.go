package collector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"draft-analyzer/internal/db"
	"draft-analyzer/internal/discord"
	"draft-analyzer/internal/ingest"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/riot"
)

type fakeAccounts struct {
	mu          sync.Mutex
	accounts    map[string]*riot.AccountResponse // keyed by riot ID and PUUID
	history     map[string][]string
	masteryErr  error
	historyErr  error
	masteryHits int
}

func (f *fakeAccounts) GetAccountByRiotID(_ context.Context, name, tag string) (*riot.AccountResponse, error) {
	if a, ok := f.accounts[name+"#"+tag]; ok {
		return a, nil
	}
	return nil, riot.ErrNotFound
}

func (f *fakeAccounts) GetAccountByPUUID(_ context.Context, puuid string) (*riot.AccountResponse, error) {
	if a, ok := f.accounts[puuid]; ok {
		return a, nil
	}
	return nil, riot.ErrNotFound
}

func (f *fakeAccounts) GetMatchHistory(_ context.Context, puuid string, count int) ([]string, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	ids := f.history[puuid]
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}

func (f *fakeAccounts) GetChampionMasteries(_ context.Context, puuid string) ([]riot.MasteryResponse, error) {
	f.mu.Lock()
	f.masteryHits++
	f.mu.Unlock()
	if f.masteryErr != nil {
		return nil, f.masteryErr
	}
	return []riot.MasteryResponse{
		{PUUID: puuid, ChampionID: 1, ChampionLevel: 7, ChampionPoints: 250000},
		{PUUID: puuid, ChampionID: 99, ChampionLevel: 4, ChampionPoints: 12000, LastPlayTime: 1700000000000},
	}, nil
}

// storeProcessor writes canned matches straight into the store.
type storeProcessor struct {
	store   *db.Store
	matches map[string]*model.Match
}

func (p *storeProcessor) ProcessMatches(ctx context.Context, ids []string) *ingest.BatchReport {
	report := &ingest.BatchReport{}
	for _, id := range ids {
		m, ok := p.matches[id]
		if !ok {
			report.Record(id, false, nil)
			continue
		}
		err := p.store.InsertMatch(ctx, m)
		if errors.Is(err, db.ErrDuplicate) {
			report.Record(id, false, nil)
			continue
		}
		report.Record(id, err == nil, err)
	}
	return report
}

func playerMatch(id, puuid string, champion int, win bool, start time.Time) *model.Match {
	return &model.Match{
		MatchID:     id,
		GameVersion: "14.3.1",
		QueueID:     420,
		GameStart:   start,
		Participants: []model.Participant{
			{ParticipantID: 1, PUUID: puuid, TeamID: 100, ChampionID: champion, Win: win, Kills: 4, Deaths: 2, Assists: 6, CS: 150},
			{ParticipantID: 6, PUUID: "other", TeamID: 200, ChampionID: 50, Win: !win},
		},
	}
}

func setup(t *testing.T) (*db.Store, *fakeAccounts, *storeProcessor) {
	t.Helper()
	ctx := context.Background()
	store, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "collector.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(ctx, ""); err != nil {
		t.Fatal(err)
	}

	alice := &riot.AccountResponse{PUUID: "puuid-alice", GameName: "Alice", TagLine: "NA1"}
	base := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	accounts := &fakeAccounts{
		accounts: map[string]*riot.AccountResponse{"Alice#NA1": alice, "puuid-alice": alice},
		history:  map[string][]string{"puuid-alice": {"NA1_1", "NA1_2", "NA1_3", "NA1_404"}},
	}
	proc := &storeProcessor{store: store, matches: map[string]*model.Match{
		"NA1_1": playerMatch("NA1_1", "puuid-alice", 1, true, base),
		"NA1_2": playerMatch("NA1_2", "puuid-alice", 1, false, base.Add(time.Hour)),
		"NA1_3": playerMatch("NA1_3", "puuid-alice", 2, true, base.Add(2*time.Hour)),
	}}
	return store, accounts, proc
}

func TestSplitRiotID(t *testing.T) {
	tests := []struct {
		in        string
		name, tag string
		ok        bool
	}{
		{"Alice#NA1", "Alice", "NA1", true},
		{"Some Name#EUW", "Some Name", "EUW", true},
		{"puuid-only", "", "", false},
		{"#NA1", "", "", false},
		{"Alice#", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, tag, ok := SplitRiotID(tt.in)
			if name != tt.name || tag != tt.tag || ok != tt.ok {
				t.Errorf("SplitRiotID(%q) = %q, %q, %v", tt.in, name, tag, ok)
			}
		})
	}
}

func TestCollectPlayer(t *testing.T) {
	store, accounts, proc := setup(t)
	ctx := context.Background()
	c := New(accounts, store, proc, WithRegion("euw1"))

	res, err := c.CollectPlayer(ctx, "Alice#NA1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Matches.Processed != 3 || res.Matches.Skipped != 1 {
		t.Errorf("matches = %+v", res.Matches)
	}
	if res.Champions != 3 {
		t.Errorf("champions = %d, want 3", res.Champions)
	}

	p, err := store.GetPlayer(ctx, "puuid-alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Region != "euw1" || p.GameName != "Alice" || p.LastAccessed.IsZero() {
		t.Errorf("player = %+v", p)
	}

	pcs, err := store.PlayerChampions(ctx, "puuid-alice")
	if err != nil {
		t.Fatal(err)
	}
	var annie *model.PlayerChampion
	for i := range pcs {
		if pcs[i].ChampionID == 1 {
			annie = &pcs[i]
		}
	}
	if annie == nil {
		t.Fatalf("no row for champion 1 in %+v", pcs)
	}
	if annie.GamesPlayed != 2 || annie.Wins != 1 || annie.WinRate != 50 || annie.MasteryLevel != 7 {
		t.Errorf("champion 1 = %+v", annie)
	}

	// A second run finds nothing new.
	res, err = c.CollectPlayer(ctx, "puuid-alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Matches.Processed != 0 || res.Matches.Skipped != 4 {
		t.Errorf("second run matches = %+v", res.Matches)
	}
}

func TestCollectPlayer_MasteryFailureIsNonFatal(t *testing.T) {
	store, accounts, proc := setup(t)
	accounts.masteryErr = errors.New("503")
	c := New(accounts, store, proc)

	res, err := c.CollectPlayer(context.Background(), "Alice#NA1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Champions != 2 {
		t.Errorf("champions = %d, want 2 without mastery", res.Champions)
	}
}

func TestCollectPlayer_UnknownAccount(t *testing.T) {
	store, accounts, proc := setup(t)
	c := New(accounts, store, proc)

	_, err := c.CollectPlayer(context.Background(), "Nobody#NA1", 10)
	if !errors.Is(err, riot.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

type fakeNotifier struct {
	mu       sync.Mutex
	rejected []discord.CollectionSummary
	finished []discord.CollectionSummary
}

func (n *fakeNotifier) KeyRejected(_ context.Context, s discord.CollectionSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, s)
	return nil
}

func (n *fakeNotifier) CollectionFinished(_ context.Context, s discord.CollectionSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, s)
	return errors.New("webhook down")
}

func TestCollectPlayers_IsolatesFailures(t *testing.T) {
	store, accounts, proc := setup(t)
	notifier := &fakeNotifier{}
	c := New(accounts, store, proc, WithWorkers(1), WithNotifier(notifier))

	report := c.CollectPlayers(context.Background(), []string{"Alice#NA1", "Nobody#NA1"}, 5)
	if report.Processed != 1 || len(report.Failures) != 1 || report.Failures[0].ID != "Nobody#NA1" {
		t.Errorf("report = %+v", report)
	}

	// A failing webhook is only logged.
	if len(notifier.rejected) != 0 || len(notifier.finished) != 1 {
		t.Fatalf("notifications = %+v", notifier)
	}
	got := notifier.finished[0]
	if got.Players != 2 || got.Failed != 1 || got.NewMatches != 3 {
		t.Errorf("summary = %+v, want 2 players, 1 failed, 3 new matches", got)
	}
}

func TestCollectPlayers_StopsOnRejectedKey(t *testing.T) {
	store, accounts, proc := setup(t)
	accounts.historyErr = fmt.Errorf("status 403: %w", riot.ErrUnauthorized)
	notifier := &fakeNotifier{}
	c := New(accounts, store, proc, WithWorkers(1), WithNotifier(notifier))

	report := c.CollectPlayers(context.Background(), []string{"Alice#NA1", "puuid-alice", "Alice#NA1"}, 5)
	if len(report.Failures) != 3 {
		t.Fatalf("failures = %v, want 3", report.Failures)
	}
	for _, f := range report.Failures {
		if !errors.Is(f.Err, riot.ErrUnauthorized) {
			t.Errorf("failure %v should carry ErrUnauthorized", f)
		}
	}
	if len(notifier.rejected) != 1 || len(notifier.finished) != 0 {
		t.Errorf("want exactly one key alert, got %+v", notifier)
	}
}

func TestBuildPlayerChampions(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	games := []db.PlayerGame{
		{Participant: model.Participant{ChampionID: 5, Win: true, Kills: 10, Deaths: 0, Assists: 2, CS: 200}, GameStart: start},
		{Participant: model.Participant{ChampionID: 5, Win: false, Kills: 0, Deaths: 4, Assists: 4, CS: 100}, GameStart: start.Add(time.Hour)},
		{Participant: model.Participant{ChampionID: 3, Win: true}, GameStart: start},
	}
	masteries := []riot.MasteryResponse{{ChampionID: 8, ChampionLevel: 5, ChampionPoints: 30000, LastPlayTime: start.UnixMilli()}}

	pcs := BuildPlayerChampions("p", games, masteries)
	if len(pcs) != 3 {
		t.Fatalf("got %d rows, want 3", len(pcs))
	}
	if pcs[0].ChampionID != 5 || pcs[1].ChampionID != 3 || pcs[2].ChampionID != 8 {
		t.Errorf("order = %d, %d, %d", pcs[0].ChampionID, pcs[1].ChampionID, pcs[2].ChampionID)
	}

	got := pcs[0]
	if got.GamesPlayed != 2 || got.Wins != 1 || got.Losses != 1 || got.WinRate != 50 {
		t.Errorf("record = %+v", got)
	}
	if got.AvgKills != 5 || got.AvgDeaths != 2 || got.AvgAssists != 3 || got.AvgCS != 150 {
		t.Errorf("averages = %+v", got)
	}
	if !got.LastPlayed.Equal(start.Add(time.Hour)) {
		t.Errorf("last played = %v", got.LastPlayed)
	}

	if pcs[2].GamesPlayed != 0 || pcs[2].MasteryLevel != 5 || !pcs[2].LastPlayed.Equal(start) {
		t.Errorf("mastery-only row = %+v", pcs[2])
	}
}
