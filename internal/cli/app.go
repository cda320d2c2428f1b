package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"draft-analyzer/internal/cache"
	"draft-analyzer/internal/collector"
	"draft-analyzer/internal/config"
	"draft-analyzer/internal/db"
	"draft-analyzer/internal/discord"
	"draft-analyzer/internal/fetch"
	"draft-analyzer/internal/ingest"
	"draft-analyzer/internal/logging"
	"draft-analyzer/internal/recommend"
	"draft-analyzer/internal/riot"
	"draft-analyzer/internal/storage"
	"draft-analyzer/internal/ugg"
)

// app holds the components a command needs. Everything is built lazily
// so commands only pay for what they use.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store   *db.Store
	riot    *riot.Client
	ugg     *ugg.Client
	redis   *redis.Client
	rotator *storage.FileRotator
	ingest  *ingest.Service
}

func newApp(configPath, logLevel string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return &app{cfg: cfg, logger: logging.Setup(cfg.Logging, "draft-analyzer")}, nil
}

// Close releases whatever was opened.
func (a *app) Close() {
	if a.rotator != nil {
		if err := a.rotator.Close(); err != nil {
			a.logger.Warn("failed to close archive", "error", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// openStore connects and migrates the database.
func (a *app) openStore(ctx context.Context) (*db.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := db.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.Migrate(ctx, a.cfg.Database.DSN); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	a.logger.Info("database ready", "driver", a.cfg.Database.Driver)
	a.store = store
	return store, nil
}

func (a *app) riotClient() (*riot.Client, error) {
	if a.riot != nil {
		return a.riot, nil
	}
	opts := []riot.Option{riot.WithLogger(a.logger)}
	if a.cfg.Riot.RegionURL != "" {
		opts = append(opts, riot.WithBaseURL(a.cfg.Riot.RegionURL))
	}
	if a.cfg.Riot.PlatformURL != "" {
		opts = append(opts, riot.WithPlatformURL(a.cfg.Riot.PlatformURL))
	}
	c, err := riot.NewClient(a.cfg.Riot.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	a.riot = c
	return c, nil
}

// uggClient builds the third-party stats client. Redis is optional; an
// unreachable Redis degrades to the in-process cache.
func (a *app) uggClient() *ugg.Client {
	if a.ugg != nil {
		return a.ugg
	}
	u := a.cfg.UGG
	fetcher := fetch.New(fetch.Options{
		MinInterval: u.MinInterval,
		MaxRetries:  u.MaxRetries,
		BaseBackoff: u.BaseBackoff,
		Timeout:     u.Timeout,
		UserAgent:   u.UserAgent,
		Logger:      a.logger,
	})

	opts := []ugg.ClientOption{ugg.WithBaseURL(u.BaseURL), ugg.WithLogger(a.logger)}
	if a.cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			a.logger.Warn("shared cache disabled", "addr", a.cfg.Redis.Addr, "error", err)
		} else {
			a.redis = client
			opts = append(opts, ugg.WithRedis(client))
		}
	}
	a.ugg = ugg.NewClient(fetcher, u.CacheTTL, opts...)
	return a.ugg
}

// archive returns the JSONL rotator, or nil when no storage path is set.
func (a *app) archive() (*storage.FileRotator, error) {
	if a.rotator != nil || a.cfg.Ingest.StoragePath == "" {
		return a.rotator, nil
	}
	r, err := storage.NewFileRotator(a.cfg.Ingest.StoragePath, a.logger)
	if err != nil {
		return nil, err
	}
	a.rotator = r
	return r, nil
}

// ingestService wires ingestion. source may be nil for replay-only use,
// and withArchive=false keeps replayed matches from being archived again.
func (a *app) ingestService(ctx context.Context, source ingest.MatchSource, withArchive bool) (*ingest.Service, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	opts := []ingest.Option{
		ingest.WithWorkers(a.cfg.Ingest.Workers),
		ingest.WithBloom(a.cfg.Ingest.BloomCapacity, a.cfg.Ingest.BloomFalsePositive),
		ingest.WithLogger(a.logger),
	}
	if withArchive {
		r, err := a.archive()
		if err != nil {
			return nil, err
		}
		if r != nil {
			opts = append(opts, ingest.WithArchive(r))
		}
	}
	svc := ingest.NewService(source, store, opts...)
	if _, err := svc.Warm(ctx, time.Time{}); err != nil {
		return nil, err
	}
	return svc, nil
}

// fetchingIngest is ingestion backed by the Riot API, built once.
func (a *app) fetchingIngest(ctx context.Context) (*ingest.Service, *riot.Client, error) {
	rc, err := a.riotClient()
	if err != nil {
		return nil, nil, err
	}
	if a.ingest == nil {
		svc, err := a.ingestService(ctx, rc, true)
		if err != nil {
			return nil, nil, err
		}
		a.ingest = svc
	}
	return a.ingest, rc, nil
}

func (a *app) collector(ctx context.Context) (*collector.Collector, error) {
	svc, rc, err := a.fetchingIngest(ctx)
	if err != nil {
		return nil, err
	}
	opts := []collector.Option{
		collector.WithWorkers(a.cfg.Ingest.Workers),
		collector.WithLogger(a.logger),
	}
	if url := a.cfg.Discord.WebhookURL; url != "" {
		opts = append(opts, collector.WithNotifier(discord.NewWebhookClient(url)))
	}
	return collector.New(rc, a.store, svc, opts...), nil
}

func (a *app) scorer(ctx context.Context) (*recommend.Scorer, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return recommend.NewScorer(store, a.uggClient(),
		recommend.WithWorkers(a.cfg.Ingest.Workers),
		recommend.WithLogger(a.logger),
	), nil
}
