package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"sales-explorer/internal/errors"
	"sales-explorer/internal/export"
	"sales-explorer/internal/models"
	"sales-explorer/internal/services"
)

const (
	TableCategory   = "category"
	TableRegion     = "region"
	TableSegment    = "segment"
	TableTimeSeries = "timeseries"
	TablePivot      = "pivot"
	TableData       = "data"
	TableSummary    = "summary"
)

type download struct {
	file  string
	table func(*services.Snapshot) models.Tabular
}

var downloads = map[string]download{
	TableCategory:   {"Category", func(s *services.Snapshot) models.Tabular { return s.CategorySales }},
	TableRegion:     {"Region", func(s *services.Snapshot) models.Tabular { return s.RegionSales }},
	TableSegment:    {"Segment", func(s *services.Snapshot) models.Tabular { return s.SegmentSales }},
	TableTimeSeries: {"TimeSeries", func(s *services.Snapshot) models.Tabular { return s.Monthly }},
	TablePivot:      {"SubCategoryByMonth", func(s *services.Snapshot) models.Tabular { return s.Pivot }},
	TableData: {"Data", func(s *services.Snapshot) models.Tabular {
		return models.RecordTable{Columns: s.Header, Records: s.View}
	}},
	TableSummary: {"Summary", func(s *services.Snapshot) models.Tabular { return s.Summary }},
}

type DownloadHandlers struct {
	logger *slog.Logger
}

func NewDownloadHandlers(logger *slog.Logger) *DownloadHandlers {
	return &DownloadHandlers{logger: logger}
}

// HandleDownload writes one table of the filtered view as CSV or XLSX.
func (h *DownloadHandlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	name := r.PathValue("table")
	d, ok := downloads[name]
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound(fmt.Sprintf("Unknown table %q", name)), requestID(r))
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "format must be csv or xlsx"), requestID(r))
		return
	}

	a, err := analyticsFrom(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID(r))
		return
	}
	c, err := criteriaFromQuery(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID(r))
		return
	}
	snap, err := a.Snapshot(ctx, c)
	if err != nil {
		errors.WriteError(w, h.logger, toAppError(err), requestID(r))
		return
	}

	// Buffered so a failed write still produces an error response.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, d.file, d.table(snap)); err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "The download could not be generated"), requestID(r))
		return
	}

	size := buf.Len()
	filename := d.file + format.Extension()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(size))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("download interrupted", "file", filename, "error", err, "request_id", requestID(r))
		return
	}

	h.logger.Debug("download served",
		"file", filename,
		"rows", len(snap.View),
		"bytes", size,
		"request_id", requestID(r))
}
