package ugg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"draft-analyzer/internal/fetch"
)

type recordingServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
	fail bool
}

func newRecordingServer(t *testing.T) *recordingServer {
	rs := &recordingServer{hits: make(map[string]int)}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.hits[r.URL.RequestURI()]++
		fail := rs.fail
		rs.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.URL.Path {
		case "/lol/champions/ahri/counter":
			w.Write([]byte(counterPage))
		case "/lol/champions/ahri/synergy":
			w.Write([]byte(fallbackPage))
		case "/lol/tier-list":
			w.Write([]byte(tierPage))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) count(uri string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits[uri]
}

func newTestClient(rs *recordingServer, ttl time.Duration, opts ...ClientOption) *Client {
	f := fetch.New(fetch.Options{
		MinInterval: time.Millisecond,
		MaxRetries:  1,
		BaseBackoff: time.Millisecond,
	})
	opts = append([]ClientOption{WithBaseURL(rs.URL)}, opts...)
	return NewClient(f, ttl, opts...)
}

func TestGoodMatchups_FetchesOnceThenCaches(t *testing.T) {
	rs := newRecordingServer(t)
	c := newTestClient(rs, time.Hour)
	ctx := context.Background()

	first, ok := c.GoodMatchups(ctx, "Ahri")
	if !ok {
		t.Fatal("Expected data on first call")
	}
	second, ok := c.GoodMatchups(ctx, "ahri")
	if !ok {
		t.Fatal("Expected cached data on second call")
	}

	if got := rs.count("/lol/champions/ahri/counter"); got != 1 {
		t.Errorf("Expected exactly one fetch, got %d", got)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestGoodMatchups_RefetchesAfterTTL(t *testing.T) {
	rs := newRecordingServer(t)
	now := time.Unix(1700000000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := newTestClient(rs, time.Minute, WithClock(clock))
	ctx := context.Background()

	c.GoodMatchups(ctx, "Ahri")
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	c.GoodMatchups(ctx, "Ahri")

	if got := rs.count("/lol/champions/ahri/counter"); got != 2 {
		t.Errorf("Expected refetch after ttl, got %d fetches", got)
	}
}

func TestLookups_FailureIsNoData(t *testing.T) {
	rs := newRecordingServer(t)
	rs.fail = true
	c := newTestClient(rs, time.Hour)
	ctx := context.Background()

	if v, ok := c.GoodMatchups(ctx, "Ahri"); ok || v != nil {
		t.Errorf("GoodMatchups = (%v, %v), want (nil, false)", v, ok)
	}
	if v, ok := c.Synergy(ctx, "Ahri"); ok || v != nil {
		t.Errorf("Synergy = (%v, %v), want (nil, false)", v, ok)
	}
	if v, ok := c.TierList(ctx, "MIDDLE"); ok || v != nil {
		t.Errorf("TierList = (%v, %v), want (nil, false)", v, ok)
	}
	if v, ok := c.ChampionStats(ctx, "MIDDLE"); ok || v != nil {
		t.Errorf("ChampionStats = (%v, %v), want (nil, false)", v, ok)
	}

	// Failures are not cached: the next call tries again.
	rs.mu.Lock()
	rs.fail = false
	rs.mu.Unlock()
	if _, ok := c.GoodMatchups(ctx, "Ahri"); !ok {
		t.Error("Expected data once the site recovers")
	}
}

func TestTierListAndStats_ShareURLButNotCache(t *testing.T) {
	rs := newRecordingServer(t)
	c := newTestClient(rs, time.Hour)
	ctx := context.Background()

	tiers, ok := c.TierList(ctx, "MIDDLE")
	if !ok || tiers["Lux"] != 4 {
		t.Errorf("TierList = (%v, %v)", tiers, ok)
	}
	stats, ok := c.ChampionStats(ctx, "MIDDLE")
	if !ok || stats["Ahri"].WinRate != 52.5 {
		t.Errorf("ChampionStats = (%v, %v)", stats, ok)
	}
	if got := rs.count("/lol/tier-list?role=mid"); got != 2 {
		t.Errorf("Expected one fetch per dataset, got %d", got)
	}
}

func TestInvalidate(t *testing.T) {
	rs := newRecordingServer(t)
	c := newTestClient(rs, time.Hour)
	ctx := context.Background()

	c.GoodMatchups(ctx, "Ahri")
	c.Synergy(ctx, "Ahri")
	c.TierList(ctx, "MIDDLE")

	if err := c.Invalidate(ctx, "Ahri"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	c.GoodMatchups(ctx, "Ahri")
	c.Synergy(ctx, "Ahri")
	c.TierList(ctx, "MIDDLE")

	if got := rs.count("/lol/champions/ahri/counter"); got != 2 {
		t.Errorf("counter fetches = %d, want 2 after invalidate", got)
	}
	if got := rs.count("/lol/champions/ahri/synergy"); got != 2 {
		t.Errorf("synergy fetches = %d, want 2 after invalidate", got)
	}
	if got := rs.count("/lol/tier-list?role=mid"); got != 1 {
		t.Errorf("tier list should stay cached, got %d fetches", got)
	}

	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	c.TierList(ctx, "MIDDLE")
	if got := rs.count("/lol/tier-list?role=mid"); got != 2 {
		t.Errorf("tier list fetches = %d, want 2 after InvalidateAll", got)
	}
}
