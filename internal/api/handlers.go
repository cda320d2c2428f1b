package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"draft-analyzer/internal/db"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/recommend"
	"draft-analyzer/internal/riot"
)

// ErrorResponse is the body of every non-404 error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

var errUnavailable = errors.New("service not configured")

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
	})
}

// fail maps err onto a status. Not-found answers 404 with no body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, riot.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, riot.ErrUnauthorized):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, errUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// pathParam returns a URL parameter with percent-escapes decoded, so a
// Riot ID can arrive as "Name%23TAG".
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

// queryList splits a comma-separated parameter, dropping empty entries.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range strings.Split(r.URL.Query().Get(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	o, err := s.deps.Store.Overview(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	m, err := s.deps.Store.GetMatch(r.Context(), pathParam(r, "matchID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleProcessMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Matches == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	id := pathParam(r, "matchID")
	stored, err := s.deps.Matches.ProcessMatch(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matchId": id, "stored": stored})
}

func (s *Server) handleCollectPlayer(w http.ResponseWriter, r *http.Request) {
	if s.deps.Players == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	count, err := queryInt(r, "count", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.deps.Players.CollectPlayer(r.Context(), pathParam(r, "riotID"), count)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePlayerChampions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	pcs, err := s.deps.Store.PlayerChampions(r.Context(), pathParam(r, "puuid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if pcs == nil {
		pcs = []model.PlayerChampion{}
	}
	writeJSON(w, http.StatusOK, pcs)
}

func (s *Server) handleListChampions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	champs, err := s.deps.Store.ListChampions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if champs == nil {
		champs = []model.Champion{}
	}
	writeJSON(w, http.StatusOK, champs)
}

// handleAggregate serves one entity aggregate. Without a patch it returns
// the champion's most recent aggregate for the role.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "championID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid champion ID %q", chi.URLParam(r, "championID")))
		return
	}

	q := r.URL.Query()
	role := strings.ToUpper(q.Get("role"))
	if role == "" {
		role = model.RoleAll
	}

	var agg *model.EntityAggregate
	if patch := q.Get("patch"); patch == "" {
		agg, err = s.deps.Store.LatestEntityAggregate(r.Context(), id, role)
	} else {
		rank := strings.ToUpper(q.Get("rank"))
		if rank == "" {
			rank = model.RankAll
		}
		agg, err = s.deps.Store.GetEntityAggregate(r.Context(), model.EntityKey{
			ChampionID: id, Patch: patch, RankBucket: rank, Role: role,
		})
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handleListAggregates(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	aggs, err := s.deps.Store.ListEntityAggregates(r.Context(), db.AggregateFilter{
		Patch:      q.Get("patch"),
		RankBucket: strings.ToUpper(q.Get("rank")),
		Role:       strings.ToUpper(q.Get("role")),
		Limit:      limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if aggs == nil {
		aggs = []model.EntityAggregate{}
	}
	writeJSON(w, http.StatusOK, aggs)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recommend == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	limit, err := queryInt(r, "limit", recommend.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results, err := s.deps.Recommend.Recommend(r.Context(), recommend.Request{
		PUUID:     pathParam(r, "puuid"),
		Team:      queryList(r, "team"),
		Opponents: queryList(r, "opponents"),
		Role:      r.URL.Query().Get("role"),
		Limit:     limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	if err := s.deps.Cache.Invalidate(r.Context(), pathParam(r, "key")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	if err := s.deps.Cache.InvalidateAll(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
