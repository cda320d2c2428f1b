package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"draft-analyzer/internal/collector"
	"draft-analyzer/internal/db"
	"draft-analyzer/internal/logging"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/recommend"
)

// MatchProcessor ingests a match by ID.
type MatchProcessor interface {
	ProcessMatch(ctx context.Context, matchID string) (bool, error)
}

// PlayerCollector pulls a player's recent matches.
type PlayerCollector interface {
	CollectPlayer(ctx context.Context, riotIDOrPUUID string, count int) (*collector.Result, error)
}

// Recommender ranks champions for a draft.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) ([]recommend.Result, error)
}

// CacheInvalidator drops cached third-party data.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, key string) error
	InvalidateAll(ctx context.Context) error
}

// Store is the read side the API exposes.
type Store interface {
	Overview(ctx context.Context) (*model.Overview, error)
	GetMatch(ctx context.Context, matchID string) (*model.Match, error)
	ListChampions(ctx context.Context) ([]model.Champion, error)
	GetEntityAggregate(ctx context.Context, key model.EntityKey) (*model.EntityAggregate, error)
	LatestEntityAggregate(ctx context.Context, championID int, role string) (*model.EntityAggregate, error)
	ListEntityAggregates(ctx context.Context, f db.AggregateFilter) ([]model.EntityAggregate, error)
	PlayerChampions(ctx context.Context, puuid string) ([]model.PlayerChampion, error)
}

// Deps are the services behind the routes. Nil services answer 503.
type Deps struct {
	Store     Store
	Matches   MatchProcessor
	Players   PlayerCollector
	Recommend Recommender
	Cache     CacheInvalidator
}

// Server is the HTTP adapter over the analyzer's operations.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	addr       string
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a server listening on addr once started.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	if addr == "" {
		addr = ":8080"
	}
	s := &Server{
		router: chi.NewRouter(),
		addr:   addr,
		deps:   deps,
		logger: logging.OrDiscard(logger).With("component", "api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Get("/matches/{matchID}", s.handleGetMatch)
		r.Post("/matches/{matchID}", s.handleProcessMatch)

		r.Post("/players/{riotID}/collect", s.handleCollectPlayer)
		r.Get("/players/{puuid}/champions", s.handlePlayerChampions)

		r.Get("/champions", s.handleListChampions)
		r.Get("/champions/{championID}/aggregate", s.handleAggregate)
		r.Get("/aggregates", s.handleListAggregates)

		r.Get("/recommendations/{puuid}", s.handleRecommendations)

		r.Delete("/cache", s.handleInvalidateAll)
		r.Delete("/cache/{key}", s.handleInvalidate)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
