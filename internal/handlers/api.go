package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sales-explorer/internal/errors"
	"sales-explorer/internal/models"
	"sales-explorer/internal/services"
	"sales-explorer/internal/session"
)

const version = "1.0.0"

// Responses depend on the session's dataset, so shared caches must not
// keep them.
var privateCache = map[string]string{
	"Cache-Control": "private, no-cache",
}

type APIHandlers struct {
	store     *session.Store
	logger    *slog.Logger
	startedAt time.Time
}

func NewAPIHandlers(store *session.Store, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		store:     store,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// snapshot computes the snapshot for the query string criteria and writes
// the error response itself when that fails.
func (h *APIHandlers) snapshot(w http.ResponseWriter, r *http.Request) (*services.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	snap, err := func() (*services.Snapshot, error) {
		a, err := analyticsFrom(r)
		if err != nil {
			return nil, err
		}
		c, err := criteriaFromQuery(r)
		if err != nil {
			return nil, err
		}
		return a.Snapshot(ctx, c)
	}()
	if err != nil {
		errors.WriteError(w, h.logger, toAppError(err), requestID(r))
		return nil, false
	}
	return snap, true
}

func (h *APIHandlers) serve(pick func(*services.Snapshot) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := h.snapshot(w, r)
		if !ok {
			return
		}
		errors.WriteSuccessWithHeaders(w, pick(snap), privateCache)
	}
}

type optionsResponse struct {
	Criteria models.Criteria      `json:"criteria"`
	Options  models.FilterOptions `json:"options"`
}

// HandleOptions returns the cascade options and the normalised criteria.
func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any {
		return optionsResponse{Criteria: s.Criteria, Options: s.Options}
	})(w, r)
}

func (h *APIHandlers) HandleTotals(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any { return s.Totals })(w, r)
}

func (h *APIHandlers) HandleCategorySales(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any { return s.CategorySales })(w, r)
}

func (h *APIHandlers) HandleRegionSales(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any { return s.RegionSales })(w, r)
}

func (h *APIHandlers) HandleSegmentSales(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any { return s.SegmentSales })(w, r)
}

func (h *APIHandlers) HandleMonthlySales(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any { return s.Monthly })(w, r)
}

func (h *APIHandlers) HandlePivot(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any { return s.Pivot })(w, r)
}

func (h *APIHandlers) HandleTreemap(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any {
		if s.Treemap == nil {
			return []models.TreeNode{}
		}
		return s.Treemap
	})(w, r)
}

func (h *APIHandlers) HandleScatter(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any { return s.Scatter })(w, r)
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	h.serve(func(s *services.Snapshot) any { return s.Summary })(w, r)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
	}

	errors.WriteSuccess(w, healthData)
}

// HandleStats reports the session store and, when the request carries a
// session, that session's dataset.
func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"uptime":   time.Since(h.startedAt).Round(time.Second).String(),
		"sessions": h.store.Stats(),
	}
	if a, ok := session.FromContext(r.Context()); ok {
		stats["session"] = a.Stats()
	}

	errors.WriteSuccess(w, stats)
}
