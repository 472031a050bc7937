package server

import (
	"log/slog"
	"net/http"

	"sales-explorer/internal/charts"
	"sales-explorer/internal/config"
	"sales-explorer/internal/handlers"
	"sales-explorer/internal/middleware"
	"sales-explorer/internal/session"
)

type Server struct {
	store            *session.Store
	mux              *http.ServeMux
	logger           *slog.Logger
	apiHandlers      *handlers.APIHandlers
	sseHandlers      *handlers.SSEHandlers
	pageHandlers     *handlers.PageHandlers
	downloadHandlers *handlers.DownloadHandlers
}

func NewServer(store *session.Store, cfg *config.Config, logger *slog.Logger) *Server {
	presenter := handlers.NewPresenter(
		charts.NewRenderer(cfg.Dashboard.ChartWidth, cfg.Dashboard.ChartHeight),
		cfg.Upload.MaxBytes,
		logger,
	)

	s := &Server{
		store:            store,
		mux:              http.NewServeMux(),
		logger:           logger,
		apiHandlers:      handlers.NewAPIHandlers(store, logger),
		sseHandlers:      handlers.NewSSEHandlers(presenter, logger),
		pageHandlers:     handlers.NewPageHandlers(presenter, cfg.Upload.MaxBytes, logger),
		downloadHandlers: handlers.NewDownloadHandlers(logger),
	}
	s.setupRoutes(middleware.Session(store, cfg.Session, logger))
	return s
}

func (s *Server) setupRoutes(withSession middleware.Middleware) {
	handle := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, withSession(h))
	}

	// Dashboard routes
	handle("GET /{$}", s.pageHandlers.HandleDashboard)
	handle("POST /upload", s.pageHandlers.HandleUpload)
	handle("DELETE /session", s.pageHandlers.HandleReset)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	handle("GET /api/options", s.apiHandlers.HandleOptions)
	handle("GET /api/totals", s.apiHandlers.HandleTotals)
	handle("GET /api/category-sales", s.apiHandlers.HandleCategorySales)
	handle("GET /api/region-sales", s.apiHandlers.HandleRegionSales)
	handle("GET /api/segment-sales", s.apiHandlers.HandleSegmentSales)
	handle("GET /api/monthly-sales", s.apiHandlers.HandleMonthlySales)
	handle("GET /api/pivot", s.apiHandlers.HandlePivot)
	handle("GET /api/treemap", s.apiHandlers.HandleTreemap)
	handle("GET /api/scatter", s.apiHandlers.HandleScatter)
	handle("GET /api/summary", s.apiHandlers.HandleSummary)

	// Downloads
	handle("GET /download/{table}", s.downloadHandlers.HandleDownload)

	// Datastar SSE endpoints
	handle("GET /sse/dashboard", s.sseHandlers.HandleDashboard)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
