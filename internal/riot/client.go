package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"draft-analyzer/internal/logging"
	"draft-analyzer/internal/model"
)

const (
	// API base URLs
	americasBaseURL = "https://americas.api.riotgames.com"
	na1BaseURL      = "https://na1.api.riotgames.com"
	ddragonBaseURL  = "https://ddragon.leagueoflegends.com"

	// Rate limits for dev key (using conservative values to be safe)
	requestsPerSecond = 15 // Actual: 20
	requestsPer2Min   = 90 // Actual: 100

	defaultRetryAfter = 10 * time.Second
	max429Retries     = 3
)

var (
	// ErrNotFound is returned for a 404 from any endpoint.
	ErrNotFound = errors.New("riot: not found")

	// ErrUnauthorized is returned for 401/403: the key is missing, invalid or expired.
	ErrUnauthorized = errors.New("riot: unauthorized")
)

// Client is a rate-limited Riot API client
type Client struct {
	apiKey      string
	httpClient  *http.Client
	regionURL   string
	platformURL string
	ddragonURL  string
	logger      *slog.Logger

	// Rate limiting
	mu          sync.Mutex
	shortWindow []time.Time // Requests in last second
	longWindow  []time.Time // Requests in last 2 minutes
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets the regional routing URL (account and match endpoints).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.regionURL = u }
}

// WithPlatformURL sets the platform URL (mastery and status endpoints).
func WithPlatformURL(u string) Option {
	return func(c *Client) { c.platformURL = u }
}

// WithDataDragonURL sets the static data URL.
func WithDataDragonURL(u string) Option {
	return func(c *Client) { c.ddragonURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new Riot API client
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY or RIOT-DEV-KEY environment variable not set")
	}
	return newClient(apiKey, opts...), nil
}

// NewDataDragonClient creates a client for static data only. Calls that
// need an API key are rejected upstream.
func NewDataDragonClient(opts ...Option) *Client {
	return newClient("", opts...)
}

func newClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		regionURL:   americasBaseURL,
		platformURL: na1BaseURL,
		ddragonURL:  ddragonBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("component", "riot")

	// Show key prefix for debugging (don't show full key)
	if len(apiKey) > 12 {
		c.logger.Debug("using API key", "key", apiKey[:8]+"..."+apiKey[len(apiKey)-4:])
	}
	return c
}

// waitForRateLimit blocks until we can make another request
func (c *Client) waitForRateLimit(ctx context.Context) error {
	for {
		c.mu.Lock()

		now := time.Now()
		c.shortWindow = prune(c.shortWindow, now.Add(-time.Second))
		c.longWindow = prune(c.longWindow, now.Add(-2*time.Minute))

		var wait time.Duration
		switch {
		case len(c.shortWindow) >= requestsPerSecond:
			wait = c.shortWindow[0].Add(time.Second).Sub(now) + 100*time.Millisecond
		case len(c.longWindow) >= requestsPer2Min:
			wait = c.longWindow[0].Add(2*time.Minute).Sub(now) + 100*time.Millisecond
		default:
			c.shortWindow = append(c.shortWindow, now)
			c.longWindow = append(c.longWindow, now)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		c.logger.Debug("rate limit reached, waiting",
			"short", len(c.shortWindow), "long", len(c.longWindow), "wait", wait)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func prune(window []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	return window[i:]
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// doRequest makes a rate-limited request and decodes a JSON body into result.
func (c *Client) doRequest(ctx context.Context, url string, result any) error {
	for attempt := 0; ; attempt++ {
		if err := c.waitForRateLimit(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Riot-Token", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", url, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < max429Retries {
			resp.Body.Close()
			wait := retryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn("rate limited by upstream", "url", url, "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		err = decodeResponse(resp, result)
		resp.Body.Close()
		return err
	}
}

func decodeResponse(resp *http.Response, result any) error {
	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode %s: %w", resp.Request.URL.Path, err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	default:
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
}

func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine)
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionURL, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.doRequest(ctx, u, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByPUUID fetches account info by PUUID
func (c *Client) GetAccountByPUUID(ctx context.Context, puuid string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-puuid/%s", c.regionURL, url.PathEscape(puuid))

	var account AccountResponse
	if err := c.doRequest(ctx, u, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetMatchHistory fetches the most recent match IDs for a player
func (c *Client) GetMatchHistory(ctx context.Context, puuid string, count int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?count=%d", c.regionURL, url.PathEscape(puuid), count)

	var matchIDs []string
	if err := c.doRequest(ctx, u, &matchIDs); err != nil {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatch fetches match details. Use ToMatch for the analyzer model.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*MatchResponse, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionURL, url.PathEscape(matchID))

	var match MatchResponse
	if err := c.doRequest(ctx, u, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetChampionMasteries fetches a player's mastery on every champion they have played.
func (c *Client) GetChampionMasteries(ctx context.Context, puuid string) ([]MasteryResponse, error) {
	u := fmt.Sprintf("%s/lol/champion-mastery/v4/champion-masteries/by-puuid/%s", c.platformURL, url.PathEscape(puuid))

	var masteries []MasteryResponse
	if err := c.doRequest(ctx, u, &masteries); err != nil {
		return nil, err
	}
	return masteries, nil
}

// ValidateKey checks the API key against the platform status endpoint.
// Returns:
//   - (true, nil) if the key is valid
//   - (false, nil) if the key is invalid (401/403)
//   - (false, error) if there was a network/server error (key validity unknown)
func (c *Client) ValidateKey(ctx context.Context) (bool, error) {
	var status struct {
		ID string `json:"id"`
	}
	err := c.doRequest(ctx, c.platformURL+"/lol/status/v4/platform-data", &status)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUnauthorized):
		return false, nil
	default:
		return false, err
	}
}

// FetchMatch fetches a match and converts it to the analyzer's model.
func (c *Client) FetchMatch(ctx context.Context, matchID string) (*model.Match, error) {
	resp, err := c.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return resp.ToMatch(), nil
}
