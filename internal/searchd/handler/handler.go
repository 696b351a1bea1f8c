// Package handler exposes the search service's HTTP API: query execution,
// document tombstoning, and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ftsql/ftsql/internal/index/tombstone"
	"github.com/ftsql/ftsql/internal/query"
	"github.com/ftsql/ftsql/internal/query/cache"
	"github.com/ftsql/ftsql/pkg/config"
	pkgerrors "github.com/ftsql/ftsql/pkg/errors"
	"github.com/ftsql/ftsql/pkg/kafka"
	"github.com/ftsql/ftsql/pkg/logger"
	"github.com/ftsql/ftsql/pkg/metrics"
)

// SearchResponse is the JSON shape returned by the search endpoint.
type SearchResponse struct {
	Query     string      `json:"query"`
	TotalHits int         `json:"total_hits"`
	Results   []ScoredDoc `json:"results"`
	GroupBy   []uint32    `json:"group_by,omitempty"`
	CacheHit  bool        `json:"cache_hit"`
	LatencyMs int64       `json:"latency_ms"`
}

// ScoredDoc is one ranked result.
type ScoredDoc struct {
	DocID uint32 `json:"doc_id"`
	Score int64  `json:"score"`
}

// Handler serves the search API.
type Handler struct {
	executor   *query.Executor
	cache      *cache.QueryCache
	tombstones *kafka.Producer
	cfg        config.SearchConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a Handler. cache, tombstones, and m may be nil when the
// backing services are unavailable.
func New(exec *query.Executor, queryCache *cache.QueryCache, tombstones *kafka.Producer, cfg config.SearchConfig, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:   exec,
		cache:      queryCache,
		tombstones: tombstones,
		cfg:        cfg,
		metrics:    m,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

// Search executes a word query (?q=) or a LIKE query (?like=) and returns
// the top ranked documents.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	text := params.Get("q")
	like := params.Get("like")
	if (text == "") == (like == "") {
		h.writeError(w, http.StatusBadRequest, "exactly one of 'q' and 'like' is required")
		return
	}

	q := query.Query{
		Text:      text,
		Like:      like,
		Field:     params.Get("field"),
		FieldRank: intParam(params.Get("field_rank"), 1),
		Flags: query.Flags{
			CanLoadPartOfDocs: boolParam(params.Get("partial")),
			NoAndExpression:   boolParam(params.Get("no_and")),
			NeedGroupBy:       boolParam(params.Get("group_by")),
			Not:               boolParam(params.Get("not")),
			End:               intParam(params.Get("end"), 0),
		},
	}
	top := intParam(params.Get("limit"), h.cfg.Top)

	var result *query.ResultSet
	var err error
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, q, func() (*query.ResultSet, error) {
			return h.executor.Execute(ctx, q, nil)
		})
	} else {
		result, err = h.executor.Execute(ctx, q, nil)
	}
	if err != nil {
		log.Error("search execution failed", "error", err)
		h.writeError(w, pkgerrors.HTTPStatusCode(err), "search failed")
		return
	}

	if h.metrics != nil {
		status := "miss"
		switch {
		case h.cache == nil:
			status = "none"
		case cacheHit:
			status = "hit"
		}
		h.metrics.QueryLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}

	ranked := h.executor.Top(result, top)
	resp := SearchResponse{
		Query:     text + like,
		TotalHits: result.RelTotalCount,
		Results:   make([]ScoredDoc, 0, len(ranked)),
		CacheHit:  cacheHit,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	for _, doc := range ranked {
		resp.Results = append(resp.Results, ScoredDoc{DocID: doc.DocID, Score: doc.Score})
	}
	if result.GroupBy != nil {
		resp.GroupBy = result.GroupBy.ToArray()
	}

	log.Info("search completed",
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", resp.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// DeleteDocument publishes a tombstone for the given doc id. The deletion
// filter picks it up through the tombstone topic.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if h.tombstones == nil {
		h.writeError(w, http.StatusServiceUnavailable, "tombstone publishing is disabled")
		return
	}
	docID, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an unsigned integer")
		return
	}
	event := tombstone.Event{
		DocID:     uint32(docID),
		DeletedAt: time.Now().Unix(),
	}
	if err := h.tombstones.Publish(r.Context(), kafka.Event{
		Key:   r.PathValue("id"),
		Value: event,
	}); err != nil {
		h.logger.Error("tombstone publish failed", "doc_id", docID, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "tombstone publish failed")
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(context.WithoutCancel(r.Context())); err != nil {
			h.logger.Error("cache invalidation failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"doc_id": docID, "status": "tombstoned"})
}

// CacheInvalidate drops all cached query results.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func boolParam(s string) bool {
	return s == "1" || s == "true"
}
