package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"sales-explorer/internal/errors"
	"sales-explorer/internal/loader"
	"sales-explorer/internal/services"
	"sales-explorer/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	uploadTimeout = 60 * time.Second

	// uploadFormMemory is how much of a multipart body is kept in memory
	// before spilling to temporary files.
	uploadFormMemory = 8 << 20
)

// PageHandlers serve the server-rendered dashboard and the upload flow.
type PageHandlers struct {
	presenter *Presenter
	maxUpload int64
	logger    *slog.Logger
}

func NewPageHandlers(presenter *Presenter, maxUpload int64, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		presenter: presenter,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

func (h *PageHandlers) render(ctx context.Context, w http.ResponseWriter, status int, page templates.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := templates.Dashboard(page).Render(ctx, w); err != nil {
		h.logger.ErrorContext(ctx, "render dashboard", "error", err)
	}
}

// HandleDashboard renders the full page for the criteria in the query
// string, or the upload form when the session has no dataset.
func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	a, err := analyticsFrom(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID(r))
		return
	}

	ds := a.Dataset()
	if ds.Len() == 0 {
		h.render(ctx, w, http.StatusOK, h.presenter.Page(ds, nil, ""))
		return
	}

	snap, err := h.snapshot(ctx, r, a)
	if err != nil {
		appErr := toAppError(err)
		h.logger.WarnContext(ctx, "dashboard criteria rejected",
			"error_code", appErr.Code,
			"request_id", requestID(r),
			"cause", err)
		h.render(ctx, w, appErr.StatusCode, h.presenter.Page(ds, nil, appErr.Message))
		return
	}

	h.render(ctx, w, http.StatusOK, h.presenter.Page(ds, snap, ""))
}

func (h *PageHandlers) snapshot(ctx context.Context, r *http.Request, a *services.Analytics) (*services.Snapshot, error) {
	c, err := criteriaFromQuery(r)
	if err != nil {
		return nil, err
	}
	return a.Snapshot(ctx, c)
}

// HandleUpload replaces the session's dataset with the uploaded file. A
// failed upload keeps the previous dataset and shows a single message.
func (h *PageHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	a, err := analyticsFrom(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID(r))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := h.load(ctx, r, a); err != nil {
		appErr := toAppError(err)
		h.logger.WarnContext(ctx, "upload rejected",
			"error_code", appErr.Code,
			"request_id", requestID(r),
			"cause", err)
		h.render(ctx, w, appErr.StatusCode, h.presenter.Page(nil, nil, appErr.Message))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandlers) load(ctx context.Context, r *http.Request, a *services.Analytics) error {
	if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
		if tooLarge := toAppError(err); tooLarge.Code == errors.CodePayloadTooLarge {
			return tooLarge
		}
		return errors.BadRequestWrap(err, "The upload could not be read, choose a file and try again")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return errors.BadRequestWrap(err, "Choose a file to upload")
	}
	defer file.Close()

	if !loader.Supported(header.Filename) {
		return loader.Unsupported(header.Filename)
	}
	return a.Load(ctx, header.Filename, file)
}

// HandleReset drops the session's dataset so another file can be uploaded.
func (h *PageHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	a, err := analyticsFrom(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID(r))
		return
	}
	a.Clear()

	if isDatastar(r) {
		sse := datastar.NewSSE(w, r)
		if err := sse.Redirect("/"); err != nil {
			h.logger.Warn("redirect after reset", "error", err)
		}
		return
	}
	errors.WriteSuccess(w, map[string]bool{"cleared": true})
}

