package ugg

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/redis/go-redis/v9"

	"draft-analyzer/internal/cache"
	"draft-analyzer/internal/logging"
)

const DefaultBaseURL = "https://u.gg"

// DocumentFetcher is satisfied by *fetch.Fetcher.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// dataset pairs the in-process cache with the optional shared one.
type dataset[V any] struct {
	name   string
	local  *cache.TTL[string, V]
	shared *cache.Redis[V]
}

func (d *dataset[V]) evict(ctx context.Context, key string) error {
	d.local.Evict(key)
	if d.shared != nil {
		return d.shared.Evict(ctx, key)
	}
	return nil
}

func (d *dataset[V]) evictAll(ctx context.Context) error {
	d.local.EvictAll()
	if d.shared != nil {
		return d.shared.EvictAll(ctx)
	}
	return nil
}

// Client reads champion statistics from U.GG pages. Every lookup is
// served from cache when fresh; otherwise the page is fetched through
// the rate-limited fetcher. A failed fetch yields ok == false, never a
// zero-valued result.
type Client struct {
	fetcher DocumentFetcher
	baseURL string
	logger  *slog.Logger

	counters *dataset[[]CounterData]
	synergy  *dataset[map[string]float64]
	tiers    *dataset[map[string]int]
	stats    *dataset[map[string]ChampionStats]
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL string
	logger  *slog.Logger
	redis   *redis.Client
	clock   func() time.Time
}

// WithBaseURL points the client at a different site, for tests.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithRedis adds a shared cache layer consulted after a local miss.
func WithRedis(client *redis.Client) ClientOption {
	return func(o *clientOptions) {
		o.redis = client
	}
}

// WithClock sets the clock used for local cache freshness.
func WithClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) {
		o.clock = now
	}
}

// NewClient creates a client whose cached datasets live for ttl.
func NewClient(fetcher DocumentFetcher, ttl time.Duration, opts ...ClientOption) *Client {
	o := clientOptions{baseURL: DefaultBaseURL, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		fetcher:  fetcher,
		baseURL:  o.baseURL,
		logger:   logging.OrDiscard(o.logger).With("component", "ugg"),
		counters: newDataset[[]CounterData](datasetCounters, ttl, o),
		synergy:  newDataset[map[string]float64](datasetSynergy, ttl, o),
		tiers:    newDataset[map[string]int](datasetTiers, ttl, o),
		stats:    newDataset[map[string]ChampionStats](datasetStats, ttl, o),
	}
}

func newDataset[V any](name string, ttl time.Duration, o clientOptions) *dataset[V] {
	d := &dataset[V]{
		name:  name,
		local: cache.NewTTL[string, V](ttl, cache.WithClock(o.clock)),
	}
	if o.redis != nil {
		d.shared = cache.NewRedis[V](o.redis, "ugg:"+name+":", ttl)
	}
	return d
}

// GoodMatchups returns the opponents champion performs well against.
func (c *Client) GoodMatchups(ctx context.Context, champion string) ([]CounterData, bool) {
	slug := Slug(champion)
	url := fmt.Sprintf("%s/lol/champions/%s/counter", c.baseURL, slug)
	return lookup(ctx, c, c.counters, slug, url, parseCounters)
}

// Synergy returns teammate win rates for champion, keyed by display name.
func (c *Client) Synergy(ctx context.Context, champion string) (map[string]float64, bool) {
	slug := Slug(champion)
	url := fmt.Sprintf("%s/lol/champions/%s/synergy", c.baseURL, slug)
	return lookup(ctx, c, c.synergy, slug, url, parseSynergy)
}

// TierList returns champion tiers (1-5) for role.
func (c *Client) TierList(ctx context.Context, role string) (map[string]int, bool) {
	r := roleSlug(role)
	url := fmt.Sprintf("%s/lol/tier-list?role=%s", c.baseURL, r)
	return lookup(ctx, c, c.tiers, r, url, parseTierList)
}

// ChampionStats returns win rate and tier per champion for role.
func (c *Client) ChampionStats(ctx context.Context, role string) (map[string]ChampionStats, bool) {
	r := roleSlug(role)
	url := fmt.Sprintf("%s/lol/tier-list?role=%s", c.baseURL, r)
	return lookup(ctx, c, c.stats, r, url, parseChampionStats)
}

// Invalidate drops key (a champion or role name) from every dataset.
func (c *Client) Invalidate(ctx context.Context, key string) error {
	slug := Slug(key)
	role := roleSlug(key)
	return firstErr(
		c.counters.evict(ctx, slug),
		c.synergy.evict(ctx, slug),
		c.tiers.evict(ctx, role),
		c.stats.evict(ctx, role),
	)
}

// InvalidateAll empties every dataset.
func (c *Client) InvalidateAll(ctx context.Context) error {
	return firstErr(
		c.counters.evictAll(ctx),
		c.synergy.evictAll(ctx),
		c.tiers.evictAll(ctx),
		c.stats.evictAll(ctx),
	)
}

func lookup[V any](ctx context.Context, c *Client, d *dataset[V], key, url string, parse func(*goquery.Document) V) (V, bool) {
	if v, ok := d.local.Get(key); ok {
		return v, true
	}

	if d.shared != nil {
		v, ok, err := d.shared.Get(ctx, key)
		if err != nil {
			c.logger.Warn("shared cache read failed", "dataset", d.name, "key", key, "error", err)
		} else if ok {
			d.local.Put(key, v)
			return v, true
		}
	}

	doc, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		c.logger.Warn("no data", "dataset", d.name, "key", key, "error", err)
		var zero V
		return zero, false
	}

	v := parse(doc)
	d.local.Put(key, v)
	if d.shared != nil {
		if err := d.shared.Put(ctx, key, v); err != nil {
			c.logger.Warn("shared cache write failed", "dataset", d.name, "key", key, "error", err)
		}
	}
	return v, true
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
