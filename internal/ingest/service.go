package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/errgroup"

	"draft-analyzer/internal/cache"
	"draft-analyzer/internal/db"
	"draft-analyzer/internal/logging"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/riot"
	"draft-analyzer/internal/stats"
)

const (
	DefaultWorkers            = 4
	DefaultBloomCapacity      = 500000
	DefaultBloomFalsePositive = 0.001

	catalogTTL = 5 * time.Minute
)

// MatchSource fetches a match by ID. A missing match is reported with an
// error wrapping riot.ErrNotFound.
type MatchSource interface {
	FetchMatch(ctx context.Context, matchID string) (*model.Match, error)
}

// Store is the persistence ingestion needs. InTx commits the match row
// and its aggregate updates together or not at all.
type Store interface {
	MatchExists(ctx context.Context, matchID string) (bool, error)
	MatchIDs(ctx context.Context, since time.Time) ([]string, error)
	KnownChampionIDs(ctx context.Context) (map[int]bool, error)
	InTx(ctx context.Context, fn func(db.Writer) error) error
}

// Archive receives every newly stored match.
type Archive interface {
	WriteMatch(m *model.Match) error
}

// Service turns match IDs and raw matches into stored matches and merged
// aggregates. Each match is stored at most once, in the same transaction
// as its aggregate updates, so a failed match leaves no trace and can be
// retried.
type Service struct {
	source  MatchSource
	store   Store
	merger  *stats.Merger
	archive Archive
	workers int
	logger  *slog.Logger

	// Deduplication prefilter; the store's unique match ID is authoritative.
	seenMu sync.Mutex
	seen   *bloom.BloomFilter

	catalog *cache.TTL[string, map[int]bool]
}

// Option configures a Service.
type Option func(*Service)

// WithArchive writes newly stored matches to a.
func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithWorkers bounds MergeBatch concurrency.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithBloom sizes the seen-match filter.
func WithBloom(capacity uint, falsePositive float64) Option {
	return func(s *Service) {
		if capacity > 0 && falsePositive > 0 && falsePositive < 1 {
			s.seen = bloom.NewWithEstimates(capacity, falsePositive)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an ingestion service. source may be nil when only
// IngestMatch and MergeBatch are used.
func NewService(source MatchSource, store Store, opts ...Option) *Service {
	s := &Service{
		source:  source,
		store:   store,
		workers: DefaultWorkers,
		seen:    bloom.NewWithEstimates(DefaultBloomCapacity, DefaultBloomFalsePositive),
		catalog: cache.NewTTL[string, map[int]bool](catalogTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).With("component", "ingest")
	s.merger = stats.NewMerger(s.logger)
	return s
}

// Warm loads stored match IDs into the seen filter so that unseen IDs can
// skip the existence query.
func (s *Service) Warm(ctx context.Context, since time.Time) (int, error) {
	ids, err := s.store.MatchIDs(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to load match IDs: %w", err)
	}
	for _, id := range ids {
		s.markSeen(id)
	}
	s.logger.Info("seen filter warmed", "matches", len(ids))
	return len(ids), nil
}

func (s *Service) maybeSeen(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return s.seen.TestString(id)
}

func (s *Service) markSeen(id string) {
	s.seenMu.Lock()
	s.seen.AddString(id)
	s.seenMu.Unlock()
}

// ProcessMatch fetches, stores and merges one match by ID. It returns
// false with a nil error when the match is already stored or does not
// exist upstream. Safe to call repeatedly and concurrently for the same ID.
func (s *Service) ProcessMatch(ctx context.Context, matchID string) (bool, error) {
	if s.maybeSeen(matchID) {
		// The filter can give false positives, so the store decides.
		exists, err := s.store.MatchExists(ctx, matchID)
		if err != nil {
			return false, fmt.Errorf("failed to check match %s: %w", matchID, err)
		}
		if exists {
			return false, nil
		}
	}

	if s.source == nil {
		return false, fmt.Errorf("no match source configured")
	}
	m, err := s.source.FetchMatch(ctx, matchID)
	if errors.Is(err, riot.ErrNotFound) {
		s.logger.Debug("match not found upstream", "match", matchID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch match %s: %w", matchID, err)
	}
	return s.IngestMatch(ctx, m)
}

// IngestMatch stores m and merges its deltas atomically. It returns false
// with a nil error if m was already stored; on any other error nothing is
// written.
func (s *Service) IngestMatch(ctx context.Context, m *model.Match) (bool, error) {
	if m.MatchID == "" {
		return false, fmt.Errorf("match has no ID")
	}

	known, err := s.knownChampions(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load champions for %s: %w", m.MatchID, err)
	}
	deltas := stats.Aggregate(m, func(id int) bool { return known[id] })
	if deltas.Empty() {
		s.logger.Warn("match produced no deltas", "match", m.MatchID, "catalog", len(known))
	}

	err = s.store.InTx(ctx, func(w db.Writer) error {
		if err := w.InsertMatch(ctx, m); err != nil {
			return err
		}
		return s.merger.Merge(ctx, w, deltas)
	})
	if errors.Is(err, db.ErrDuplicate) {
		s.markSeen(m.MatchID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to ingest match %s: %w", m.MatchID, err)
	}
	s.markSeen(m.MatchID)

	if s.archive != nil {
		if err := s.archive.WriteMatch(m); err != nil {
			s.logger.Warn("failed to archive match", "match", m.MatchID, "error", err)
		}
	}

	s.logger.Debug("match ingested", "match", m.MatchID, "patch", deltas.Patch, "rank", deltas.RankBucket,
		"entities", len(deltas.Entities), "matchups", len(deltas.Matchups), "synergies", len(deltas.Synergies))
	return true, nil
}

func (s *Service) knownChampions(ctx context.Context) (map[int]bool, error) {
	if ids, ok := s.catalog.Get("ids"); ok {
		return ids, nil
	}
	ids, err := s.store.KnownChampionIDs(ctx)
	if err != nil {
		return nil, err
	}
	// An empty catalog is not cached so seeding takes effect at once.
	if len(ids) > 0 {
		s.catalog.Put("ids", ids)
	}
	return ids, nil
}

// ResetCatalog drops the cached champion catalog.
func (s *Service) ResetCatalog() {
	s.catalog.EvictAll()
}

// MergeBatch ingests each match as an independent unit. A failing match
// is recorded and the rest of the batch continues.
func (s *Service) MergeBatch(ctx context.Context, matches []model.Match) *BatchReport {
	report := &BatchReport{}

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i := range matches {
		m := &matches[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.Fail(m.MatchID, err)
				return nil
			}
			done, err := s.IngestMatch(ctx, m)
			if err != nil {
				s.logger.Warn("match failed", "match", m.MatchID, "error", err)
			}
			report.Record(m.MatchID, done, err)
			return nil
		})
	}
	g.Wait()

	s.logger.Info("batch merged", "processed", report.Processed, "skipped", report.Skipped, "failed", len(report.Failures))
	return report
}

// ProcessMatches runs ProcessMatch over ids with the same per-unit
// isolation as MergeBatch.
func (s *Service) ProcessMatches(ctx context.Context, ids []string) *BatchReport {
	report := &BatchReport{}

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.Fail(id, err)
				return nil
			}
			done, err := s.ProcessMatch(ctx, id)
			if err != nil {
				s.logger.Warn("match failed", "match", id, "error", err)
			}
			report.Record(id, done, err)
			return nil
		})
	}
	g.Wait()
	return report
}
