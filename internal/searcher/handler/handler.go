// Package handler serves the lookup HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Reloader reloads the catalog from its source. *catalog.Loader
// implements it.
type Reloader interface {
	Reload(ctx context.Context) (*catalog.Catalog, error)
}

type Options struct {
	DefaultMode  lookup.Mode
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	exec    *executor.Executor
	cache   *cache.QueryCache
	sink    analytics.Sink
	loader  Reloader
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger
}

// New wires the handler. cache, sink, loader and m may be nil.
func New(exec *executor.Executor, queryCache *cache.QueryCache, sink analytics.Sink, loader Reloader, m *metrics.Metrics, opts Options) *Handler {
	if opts.DefaultMode == "" {
		opts.DefaultMode = lookup.ModePrefix
	}
	return &Handler{
		exec:    exec,
		cache:   queryCache,
		sink:    sink,
		loader:  loader,
		metrics: m,
		opts:    opts,
		logger:  slog.Default().With("component", "lookup-handler"),
	}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/sections", h.Sections)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/validate", h.Validate)
	mux.HandleFunc("POST /api/v1/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /search/{file}", h.File)
}

type entryJSON struct {
	ID      string             `json:"id"`
	Key     string             `json:"key"`
	Name    string             `json:"name"`
	File    string             `json:"file"`
	Matches []searchdata.Match `json:"matches"`
}

type searchResponse struct {
	Query    string      `json:"query"`
	Section  string      `json:"section"`
	Mode     lookup.Mode `json:"mode"`
	Total    int         `json:"total"`
	Returned int         `json:"returned"`
	CacheHit bool        `json:"cacheHit"`
	Entries  []entryJSON `json:"entries"`
}

// Search serves GET /api/v1/search?q=&section=&mode=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	text := params.Get("q")
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	mode, err := lookup.ParseMode(params.Get("mode"), h.opts.DefaultMode)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	limit, err := h.parseLimit(params.Get("limit"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	idx, err := h.exec.Index()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	q := lookup.Query{Text: text, Section: params.Get("section"), Mode: mode, Limit: limit}.
		Normalize(idx.DefaultSection())

	var result lookup.Result
	cacheHit := false
	compute := func() (lookup.Result, error) { return h.exec.Execute(ctx, q) }
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, q, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownSection) {
			err = apperrors.Newf(apperrors.ErrUnknownSection, http.StatusBadRequest, "unknown section %q", q.Section)
		}
		h.observe(q, 0, time.Since(start), cacheHit, err)
		h.writeErr(w, err)
		return
	}

	latency := time.Since(start)
	h.observe(q, result.Total, latency, cacheHit, nil)
	log.Info("lookup completed",
		"query", q.Text,
		"section", q.Section,
		"mode", q.Mode,
		"total", result.Total,
		"returned", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_us", latency.Microseconds(),
	)
	if h.sink != nil {
		h.sink.Track(analytics.LookupEvent{
			Type:      analytics.EventLookup,
			Query:     q.Text,
			Section:   q.Section,
			Mode:      string(q.Mode),
			Total:     result.Total,
			Returned:  len(result.Hits),
			LatencyUs: latency.Microseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, searchResponse{
		Query:    q.Text,
		Section:  q.Section,
		Mode:     q.Mode,
		Total:    result.Total,
		Returned: len(result.Hits),
		CacheHit: cacheHit,
		Entries: lo.Map(result.Hits, func(hit lookup.Hit, _ int) entryJSON {
			return entryJSON{
				ID:      hit.Entry.ID,
				Key:     hit.Entry.Key,
				Name:    hit.Entry.Name,
				File:    hit.File,
				Matches: hit.Entry.Matches,
			}
		}),
	})
}

func (h *Handler) parseLimit(s string) (int, error) {
	limit := h.opts.DefaultLimit
	if s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	if h.opts.MaxResults > 0 && (limit <= 0 || limit > h.opts.MaxResults) {
		limit = h.opts.MaxResults
	}
	return limit, nil
}

func (h *Handler) observe(q lookup.Query, total int, latency time.Duration, cacheHit bool, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case total == 0:
		outcome = "zero_result"
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else if h.cache != nil {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.LookupQueriesTotal.WithLabelValues(string(q.Mode), outcome).Inc()
	h.metrics.LookupLatency.WithLabelValues(string(q.Mode), cacheStatus).Observe(latency.Seconds())
	if err == nil {
		h.metrics.LookupResultsCount.Observe(float64(total))
	}
}

// Suggest serves GET /api/v1/suggest?q=&section=&n=.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	prefix := params.Get("q")
	if prefix == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	n := 10
	if s := params.Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			h.writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = v
	}
	idx, err := h.exec.Index()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	section := params.Get("section")
	terms, err := idx.Suggest(section, prefix, n)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownSection) {
			err = apperrors.Newf(apperrors.ErrUnknownSection, http.StatusBadRequest, "unknown section %q", section)
		}
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":       prefix,
		"suggestions": terms,
	})
}

type sectionJSON struct {
	Name    string   `json:"name"`
	Label   string   `json:"label,omitempty"`
	Files   []string `json:"files"`
	Entries int      `json:"entries"`
}

// Sections serves GET /api/v1/sections.
func (h *Handler) Sections(w http.ResponseWriter, r *http.Request) {
	cat, err := h.exec.Catalog()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	out := make([]sectionJSON, 0, len(cat.Sections()))
	for _, name := range cat.Sections() {
		files, err := cat.Files(name)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		s := sectionJSON{
			Name:  name,
			Files: lo.Map(files, func(f catalog.File, _ int) string { return f.Name }),
			Entries: lo.SumBy(files, func(f catalog.File) int {
				return f.Table.Len()
			}),
		}
		if meta, ok := cat.SectionSet().Lookup(name); ok {
			s.Label = meta.Label
		}
		out = append(out, s)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"sections": out})
}

// Stats serves GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	cat, err := h.exec.Catalog()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generation": h.exec.Generation(),
		"catalog":    cat.Stats(),
	})
}

// Validate serves GET /api/v1/validate?strict=.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	strict := false
	if s := r.URL.Query().Get("strict"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "strict must be a boolean")
			return
		}
		strict = v
	}
	cat, err := h.exec.Catalog()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	violations := cat.Validate(strict)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"valid":      len(violations) == 0,
		"strict":     strict,
		"count":      len(violations),
		"violations": lo.Map(violations, func(v catalog.FileViolation, _ int) string { return v.String() }),
	})
}

// File serves GET /search/{file}, re-rendered from the live catalog.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	cat, err := h.exec.Catalog()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if _, ok := cat.File(name); !ok && name != catalog.SectionsFile {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("no search file %q", name))
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Last-Modified", cat.LoadedAt().UTC().Format(http.TimeFormat))
	if err := cat.RenderFile(w, name); err != nil {
		h.logger.Error("rendering search file failed", "file", name, "error", err)
	}
}

// Reload serves POST /api/v1/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		h.writeError(w, http.StatusServiceUnavailable, "reload is not configured")
		return
	}
	cat, err := h.loader.Reload(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("reload failed", "error", err)
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"generation": h.exec.Generation(),
		"catalog":    cat.Stats(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	st := h.cache.Stats()
	total := st.Hits + st.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(st.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":       st.Hits,
		"misses":     st.Misses,
		"errors":     st.Errors,
		"total":      total,
		"hit_rate":   fmt.Sprintf("%.1f%%", hitRate),
		"generation": st.Generation,
		"breaker":    st.Breaker,
		"rejected":   st.Rejected,
	})
}

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

// writeErr maps err through apperrors.HTTPStatusCode. Internal errors are
// not echoed to the client.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	h.writeError(w, status, msg)
}
