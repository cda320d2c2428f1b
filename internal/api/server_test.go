package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"draft-analyzer/internal/collector"
	"draft-analyzer/internal/db"
	"draft-analyzer/internal/ingest"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/recommend"
	"draft-analyzer/internal/riot"
)

type fakeMatches struct{ stored map[string]bool }

func (f *fakeMatches) ProcessMatch(_ context.Context, id string) (bool, error) {
	if id == "NA1_broken" {
		return false, errors.New("boom")
	}
	if f.stored[id] {
		return false, nil
	}
	f.stored[id] = true
	return true, nil
}

type fakePlayers struct{ got string }

func (f *fakePlayers) CollectPlayer(_ context.Context, id string, count int) (*collector.Result, error) {
	f.got = id
	if id == "Nobody#NA1" {
		return nil, riot.ErrNotFound
	}
	return &collector.Result{Player: model.Player{PUUID: "p1"}, Matches: &ingest.BatchReport{Processed: count}}, nil
}

type fakeRecommender struct{ req recommend.Request }

func (f *fakeRecommender) Recommend(_ context.Context, req recommend.Request) ([]recommend.Result, error) {
	f.req = req
	return []recommend.Result{{ChampionID: 1, ChampionName: "Ahri", Score: 0.7}}, nil
}

type fakeCache struct {
	evicted []string
	all     int
}

func (f *fakeCache) Invalidate(_ context.Context, key string) error {
	f.evicted = append(f.evicted, key)
	return nil
}

func (f *fakeCache) InvalidateAll(context.Context) error {
	f.all++
	return nil
}

type testDeps struct {
	store   *db.Store
	players *fakePlayers
	rec     *fakeRecommender
	cache   *fakeCache
}

func newTestServer(t *testing.T) (*httptest.Server, *testDeps) {
	t.Helper()
	ctx := context.Background()
	store, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertChampions(ctx, []model.Champion{{ChampionID: 103, Key: "Ahri", Name: "Ahri"}}); err != nil {
		t.Fatal(err)
	}
	agg := &model.EntityAggregate{
		EntityKey: model.EntityKey{ChampionID: 103, Patch: "14.3", RankBucket: model.RankHigh, Role: "MIDDLE"},
		Games:     10, Wins: 6, Losses: 4, WinRate: 60, Tier: 5, LastUpdated: time.Now(),
	}
	if err := store.PutEntityAggregate(ctx, agg); err != nil {
		t.Fatal(err)
	}

	d := &testDeps{store: store, players: &fakePlayers{}, rec: &fakeRecommender{}, cache: &fakeCache{}}
	s := NewServer("", Deps{
		Store:     store,
		Matches:   &fakeMatches{stored: map[string]bool{}},
		Players:   d.players,
		Recommend: d.rec,
		Cache:     d.cache,
	}, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, d
}

func do(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
}

func TestStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var o model.Overview
	decode(t, resp, &o)
	if o.Champions != 1 || o.EntityAggregates != 1 {
		t.Errorf("overview = %+v", o)
	}
}

func TestProcessMatch(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		MatchID string `json:"matchId"`
		Stored  bool   `json:"stored"`
	}
	resp := do(t, http.MethodPost, ts.URL+"/api/matches/NA1_1")
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK || !body.Stored || body.MatchID != "NA1_1" {
		t.Errorf("first = %d %+v", resp.StatusCode, body)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/matches/NA1_1")
	decode(t, resp, &body)
	if body.Stored {
		t.Error("second post should report the match as already stored")
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/matches/NA1_broken")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("broken match status = %d", resp.StatusCode)
	}
}

func TestGetMatch_NotFoundHasEmptyBody(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/api/matches/NA1_missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		t.Errorf("content length = %d, want empty body", resp.ContentLength)
	}
}

func TestCollectPlayer_DecodesRiotID(t *testing.T) {
	ts, d := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/api/players/Alice%23NA1/collect?count=5")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if d.players.got != "Alice#NA1" {
		t.Errorf("collector got %q", d.players.got)
	}
	var res collector.Result
	decode(t, resp, &res)
	if res.Matches.Processed != 5 {
		t.Errorf("result = %+v", res)
	}

	if resp := do(t, http.MethodPost, ts.URL+"/api/players/Nobody%23NA1/collect"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown player status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/players/Alice%23NA1/collect?count=x"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad count status = %d", resp.StatusCode)
	}
}

func TestAggregate(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"exact key", "/api/champions/103/aggregate?patch=14.3&rank=DIAMOND_PLUS&role=middle", http.StatusOK},
		{"latest for role", "/api/champions/103/aggregate?role=MIDDLE", http.StatusOK},
		{"wrong rank", "/api/champions/103/aggregate?patch=14.3&role=MIDDLE", http.StatusNotFound},
		{"unknown champion", "/api/champions/1/aggregate", http.StatusNotFound},
		{"bad id", "/api/champions/ahri/aggregate", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodGet, ts.URL+tt.path)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status == http.StatusOK {
				var agg model.EntityAggregate
				decode(t, resp, &agg)
				if agg.Games != 10 || agg.Tier != 5 {
					t.Errorf("aggregate = %+v", agg)
				}
			}
		})
	}
}

func TestRecommendations_ParsesQuery(t *testing.T) {
	ts, d := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/api/recommendations/p1?team=Thresh,+Lee%20Sin&opponents=Zed&role=MIDDLE&limit=3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var results []recommend.Result
	decode(t, resp, &results)
	if len(results) != 1 || results[0].ChampionName != "Ahri" {
		t.Errorf("results = %+v", results)
	}

	req := d.rec.req
	if req.PUUID != "p1" || req.Role != "MIDDLE" || req.Limit != 3 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Team) != 2 || req.Team[1] != "Lee Sin" || len(req.Opponents) != 1 {
		t.Errorf("team = %q, opponents = %q", req.Team, req.Opponents)
	}
}

func TestCacheInvalidation(t *testing.T) {
	ts, d := newTestServer(t)

	if resp := do(t, http.MethodDelete, ts.URL+"/api/cache/ahri"); resp.StatusCode != http.StatusNoContent {
		t.Errorf("invalidate status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, ts.URL+"/api/cache"); resp.StatusCode != http.StatusNoContent {
		t.Errorf("invalidate all status = %d", resp.StatusCode)
	}
	if len(d.cache.evicted) != 1 || d.cache.evicted[0] != "ahri" || d.cache.all != 1 {
		t.Errorf("cache = %+v", d.cache)
	}
}

func TestMissingService(t *testing.T) {
	ts := httptest.NewServer(NewServer("", Deps{}, nil).Handler())
	defer ts.Close()

	resp := do(t, http.MethodGet, ts.URL+"/api/recommendations/p1")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
