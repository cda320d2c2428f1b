package riot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithBaseURL(server.URL),
		WithPlatformURL(server.URL),
		WithDataDragonURL(server.URL),
	}, opts...)
	client, err := NewClient("RGAPI-test-key", opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// TestValidateKey_ValidKey tests that a valid API key passes validation
func TestValidateKey_ValidKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Verify the API key header is set
		if r.Header.Get("X-Riot-Token") == "" {
			t.Error("Expected X-Riot-Token header to be set")
		}
		w.Write([]byte(`{"id":"NA1","name":"North America","locales":["en_US"]}`))
	})

	valid, err := client.ValidateKey(context.Background())
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if !valid {
		t.Error("Expected key to be valid")
	}
}

// TestValidateKey_InvalidKey tests that 401 and 403 mark the key invalid without an error
func TestValidateKey_InvalidKey(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		valid, err := client.ValidateKey(context.Background())
		if err != nil {
			t.Errorf("status %d: expected no error for invalid key, got: %v", status, err)
		}
		if valid {
			t.Errorf("status %d: expected key to be invalid", status)
		}
	}
}

// TestValidateKey_ServerError tests that 5xx errors return an error (not invalid)
func TestValidateKey_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	valid, err := client.ValidateKey(context.Background())
	if err == nil {
		t.Error("Expected server error to be returned")
	}
	if valid {
		t.Error("Expected key to not be valid on server error")
	}
}

// TestValidateKey_Timeout tests that timeouts return an error
func TestValidateKey_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	valid, err := client.ValidateKey(context.Background())
	if err == nil {
		t.Error("Expected timeout error to be returned")
	}
	if valid {
		t.Error("Expected key to not be valid on timeout")
	}
}

// TestValidateKey_ContextCancelled tests that cancelled context is handled
func TestValidateKey_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if valid, err := client.ValidateKey(ctx); err == nil || valid {
		t.Errorf("ValidateKey() = %v, %v; want cancellation error", valid, err)
	}
}

func TestNewClient_EmptyKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Error("Expected error for empty key")
	}
}

func TestDoRequest_RetriesAfter429(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`["NA1_1","NA1_2"]`))
	})

	ids, err := client.GetMatchHistory(context.Background(), "puuid-1", 2)
	if err != nil {
		t.Fatalf("GetMatchHistory() error = %v", err)
	}
	if len(ids) != 2 || calls.Load() != 2 {
		t.Errorf("ids = %v after %d calls", ids, calls.Load())
	}
}

func TestDoRequest_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := client.GetMatch(context.Background(), "NA1_404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMatch() error = %v, want ErrNotFound", err)
	}
}

func TestGetMatch_ToMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lol/match/v5/matches/NA1_42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"metadata": {"matchId": "NA1_42", "participants": ["a", "b"]},
			"info": {
				"gameCreation": 1700000000000, "gameStartTimestamp": 1700000060000, "gameDuration": 1712,
				"gameMode": "CLASSIC", "gameVersion": "14.3.567.8910", "queueId": 420, "platformId": "NA1",
				"participants": [
					{"participantId": 1, "puuid": "a", "riotIdGameName": "Faker", "riotIdTagline": "KR1",
					 "teamId": 100, "championId": 103, "championName": "Ahri", "teamPosition": "MIDDLE",
					 "win": true, "kills": 9, "deaths": 1, "assists": 6,
					 "totalMinionsKilled": 200, "neutralMinionsKilled": 12,
					 "goldEarned": 13000, "totalDamageDealtToChampions": 25000,
					 "item0": 3089, "item1": 0, "item6": 3340},
					{"participantId": 2, "puuid": "b", "teamId": 200, "championId": 238,
					 "championName": "Zed", "teamPosition": "MIDDLE", "win": false}
				]
			}
		}`))
	})

	resp, err := client.GetMatch(context.Background(), "NA1_42")
	if err != nil {
		t.Fatalf("GetMatch() error = %v", err)
	}
	m := resp.ToMatch()

	if m.MatchID != "NA1_42" || m.QueueID != 420 || m.GameDuration != 1712 {
		t.Errorf("match = %+v", m)
	}
	if want := time.UnixMilli(1700000060000).UTC(); !m.GameStart.Equal(want) {
		t.Errorf("GameStart = %v, want %v", m.GameStart, want)
	}
	if len(m.Participants) != 2 {
		t.Fatalf("participants = %d", len(m.Participants))
	}
	p := m.Participants[0]
	if p.CS != 212 || p.DamageDealt != 25000 || p.GameName != "Faker" || p.MatchID != "NA1_42" {
		t.Errorf("participant = %+v", p)
	}
	if len(p.Items) != 2 || p.Items[0] != 3089 || p.Items[1] != 3340 {
		t.Errorf("items = %v, want empty slots dropped", p.Items)
	}
}

func TestGetChampions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/versions.json":
			w.Write([]byte(`["14.3.1","14.2.1"]`))
		case "/cdn/14.3.1/data/en_US/champion.json":
			w.Write([]byte(`{"data": {
				"MonkeyKing": {"id": "MonkeyKing", "key": "62", "name": "Wukong", "title": "the Monkey King", "tags": ["Fighter"]},
				"Ahri": {"id": "Ahri", "key": "103", "name": "Ahri", "title": "the Nine-Tailed Fox", "tags": ["Mage", "Assassin"]},
				"Broken": {"id": "Broken", "key": "x", "name": "Broken"}
			}}`))
		default:
			http.NotFound(w, r)
		}
	})

	champs, version, err := client.GetChampions(context.Background())
	if err != nil {
		t.Fatalf("GetChampions() error = %v", err)
	}
	if version != "14.3.1" {
		t.Errorf("version = %q", version)
	}
	if len(champs) != 2 {
		t.Fatalf("champions = %+v, want 2 (bad key skipped)", champs)
	}
	if champs[0].ChampionID != 62 || champs[0].Key != "MonkeyKing" || champs[0].Name != "Wukong" {
		t.Errorf("first champion = %+v", champs[0])
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"3", 3 * time.Second},
		{"0", 0},
		{"", defaultRetryAfter},
		{"soon", defaultRetryAfter},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.header); got != tt.want {
			t.Errorf("retryAfter(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

// TestLiveAccount hits the real API when a key is available.
func TestLiveAccount(t *testing.T) {
	godotenv.Load("../../.env")
	apiKey := os.Getenv("RIOT_API_KEY")
	if apiKey == "" {
		t.Skip("RIOT_API_KEY not set, skipping integration test")
	}

	client, err := NewClient(apiKey)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	valid, err := client.ValidateKey(ctx)
	if err != nil {
		t.Fatalf("ValidateKey() error = %v", err)
	}
	if !valid {
		t.Skip("API key expired")
	}
}

func TestNewDataDragonClient_NeedsNoKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Riot-Token") != "" {
			t.Error("static requests should not send a key")
		}
		switch r.URL.Path {
		case "/api/versions.json":
			w.Write([]byte(`["15.1.1"]`))
		default:
			w.Write([]byte(`{"data": {"Lux": {"id": "Lux", "key": "99", "name": "Lux"}}}`))
		}
	}))
	defer server.Close()

	client := NewDataDragonClient(WithDataDragonURL(server.URL))
	champs, version, err := client.GetChampions(context.Background())
	if err != nil || version != "15.1.1" || len(champs) != 1 {
		t.Errorf("GetChampions() = %v, %q, %v", champs, version, err)
	}
}
