package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"sales-explorer/internal/errors"
	"sales-explorer/internal/models"
	"sales-explorer/internal/services"
	"sales-explorer/internal/ui/templates"
)

type SSEHandlers struct {
	presenter *Presenter
	logger    *slog.Logger
}

func NewSSEHandlers(presenter *Presenter, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		presenter: presenter,
		logger:    logger,
	}
}

// HandleDashboard reads the filter signals, normalises the cascade and
// patches the filter form, every panel and the message area. With a reset
// query parameter the whole dataset is shown again.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	a, err := analyticsFrom(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID(r))
		return
	}

	// reset restores the whole dataset and ignores the client's selection.
	reset := r.URL.Query().Has("reset")

	var signals filterSignals
	if !reset {
		if err := datastar.ReadSignals(r, &signals); err != nil {
			errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Invalid filter signals"), requestID(r))
			return
		}
	}

	sse := datastar.NewSSE(w, r)

	snap, err := h.snapshot(ctx, a, signals, reset)
	if err != nil {
		h.patchError(ctx, sse, r, err)
		return
	}

	if err := h.patchSnapshot(ctx, sse, snap); err != nil {
		h.logger.ErrorContext(ctx, "patch dashboard", "error", err, "request_id", requestID(r))
	}
}

func (h *SSEHandlers) snapshot(ctx context.Context, a *services.Analytics, signals filterSignals, reset bool) (*services.Snapshot, error) {
	var (
		c   models.Criteria
		err error
	)
	if reset {
		c, err = a.DefaultCriteria()
	} else {
		c, err = signals.criteria()
	}
	if err != nil {
		return nil, err
	}
	return a.Snapshot(ctx, c)
}

func (h *SSEHandlers) patchSnapshot(ctx context.Context, sse *datastar.ServerSentEventGenerator, snap *services.Snapshot) error {
	fragments := []struct {
		name string
		html func() (string, error)
	}{
		{"filters", func() (string, error) { return renderString(ctx, templates.Filters(h.presenter.Filters(snap))) }},
		{"panels", func() (string, error) { return renderString(ctx, templates.Panels(h.presenter.Panels(snap))) }},
		{"message", func() (string, error) { return renderString(ctx, templates.Message("")) }},
	}

	for _, f := range fragments {
		html, err := f.html()
		if err != nil {
			return fmt.Errorf("render %s: %w", f.name, err)
		}
		if err := sse.PatchElements(html); err != nil {
			return fmt.Errorf("patch %s: %w", f.name, err)
		}
	}

	// Pruned selections have to reach the client-side signals too, or the
	// next change would send them back.
	data, err := json.Marshal(signalsFor(snap.Criteria))
	if err != nil {
		return err
	}
	return sse.PatchSignals(data)
}

func (h *SSEHandlers) patchError(ctx context.Context, sse *datastar.ServerSentEventGenerator, r *http.Request, err error) {
	if stderrors.Is(err, services.ErrNoDataset) {
		if err := sse.Redirect("/"); err != nil {
			h.logger.Warn("redirect without dataset", "error", err)
		}
		return
	}

	appErr := toAppError(err)
	level := slog.LevelWarn
	if appErr.StatusCode >= 500 {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "dashboard update failed",
		"error_code", appErr.Code,
		"request_id", requestID(r),
		"cause", err)

	for _, c := range []struct {
		name string
		html func() (string, error)
	}{
		{"message", func() (string, error) { return renderString(ctx, templates.Message(appErr.Message)) }},
		{"panels", func() (string, error) {
			return renderString(ctx, templates.Panels(&templates.PanelsView{Error: appErr.Message}))
		}},
	} {
		html, renderErr := c.html()
		if renderErr == nil {
			renderErr = sse.PatchElements(html)
		}
		if renderErr != nil {
			h.logger.Error("patch error message", "fragment", c.name, "error", renderErr)
			return
		}
	}
}
