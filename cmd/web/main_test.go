package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sales-explorer/internal/config"
	"sales-explorer/internal/loader"
	"sales-explorer/internal/session"
)

const testCSV = `Order Date,Region,State,City,Category,Sub-Category,Segment,Sales,Profit,Quantity
11/8/2016,South,Kentucky,Henderson,Furniture,Bookcases,Consumer,261.96,41.9136,2
11/8/2016,South,Kentucky,Henderson,Furniture,Chairs,Consumer,731.94,219.582,3
6/12/2016,West,California,Los Angeles,Office Supplies,Labels,Corporate,14.62,6.8714,2
6/9/2014,West,Washington,Seattle,Technology,Phones,Consumer,907.152,90.7152,6
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Security.EnableRateLimit = false
	return cfg
}

// newTestApp wires the full handler stack. With seeded set, every new
// session starts with the test dataset.
func newTestApp(t *testing.T, seeded bool) (http.Handler, *session.Store) {
	t.Helper()
	cfg := testConfig(t)
	ld := loader.New(2)
	store := newStore(cfg, ld, testLogger())

	if seeded {
		path := filepath.Join(t.TempDir(), "Superstore.csv")
		if err := os.WriteFile(path, []byte(testCSV), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := loadSeed(context.Background(), store, ld, path, testLogger()); err != nil {
			t.Fatalf("loadSeed() error = %v", err)
		}
	}
	return newHandler(cfg, store, testLogger()), store
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	handler, _ := newTestApp(t, true)

	tests := []struct {
		method         string
		path           string
		expectedStatus int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/admin/stats", http.StatusOK},
		{http.MethodGet, "/api/options", http.StatusOK},
		{http.MethodGet, "/api/totals", http.StatusOK},
		{http.MethodGet, "/api/category-sales", http.StatusOK},
		{http.MethodGet, "/api/region-sales", http.StatusOK},
		{http.MethodGet, "/api/segment-sales", http.StatusOK},
		{http.MethodGet, "/api/monthly-sales", http.StatusOK},
		{http.MethodGet, "/api/pivot", http.StatusOK},
		{http.MethodGet, "/api/treemap", http.StatusOK},
		{http.MethodGet, "/api/scatter", http.StatusOK},
		{http.MethodGet, "/api/summary", http.StatusOK},
		{http.MethodGet, "/download/category?format=xlsx", http.StatusOK},
		{http.MethodGet, "/download/nothing", http.StatusNotFound},
		{http.MethodGet, "/sse/dashboard", http.StatusOK},
		{http.MethodDelete, "/session", http.StatusOK},
		{http.MethodGet, "/nonexistent", http.StatusNotFound},
		{http.MethodPost, "/api/totals", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	handler, _ := newTestApp(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "https://cdn.jsdelivr.net") {
		t.Errorf("CSP should allow the Datastar bundle, got %q", csp)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("health checks should not start a session")
	}
}

func TestServer_SessionFlow(t *testing.T) {
	handler, store := newTestApp(t, false)

	// First visit: no dataset, upload form, session cookie.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(w.Body.String(), `action="/upload"`) {
		t.Fatal("first visit should show the upload form")
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "explorer_session" || !cookies[0].HttpOnly {
		t.Fatalf("expected an HttpOnly session cookie, got %v", cookies)
	}
	cookie := cookies[0]

	// Upload within the same session.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "Superstore.csv")
	part.Write([]byte(testCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("upload: expected status %d, got %d: %s", http.StatusSeeOther, w.Code, w.Body.String())
	}

	// The dashboard now renders for this session only.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `id="filters"`) {
		t.Error("dashboard should render after upload")
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/totals", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("another session should have no dataset, got status %d", w.Code)
	}

	if store.Size() != 2 {
		t.Errorf("expected 2 sessions, got %d", store.Size())
	}
}

func TestServer_JSONResponse(t *testing.T) {
	handler, _ := newTestApp(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/totals?region=South", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			Rows     int    `json:"rows"`
			Sales    string `json:"sales"`
			Quantity int    `json:"quantity"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if !response.Success || response.Data.Rows != 2 || response.Data.Sales != "993.9" || response.Data.Quantity != 5 {
		t.Errorf("unexpected totals %+v", response)
	}
}

func TestServer_SSERoutes(t *testing.T) {
	handler, _ := newTestApp(t, true)

	req := httptest.NewRequest(http.MethodGet, "/sse/dashboard?datastar="+url.QueryEscape(`{"regions":["West"]}`), nil)
	req.Header.Set("Datastar-Request", "true")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected content-type to contain 'text/event-stream', got %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "event:") || !strings.Contains(body, "data:") {
		t.Error("response should be formatted as server-sent events")
	}
}

func TestServer_BodyLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxBytes = 64
	store := newStore(cfg, loader.New(1), testLogger())
	handler := newHandler(cfg, store, testLogger())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "Superstore.csv")
	part.Write([]byte(testCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code == http.StatusSeeOther {
		t.Fatal("an oversized upload must not be accepted")
	}
	if w.Code < 400 {
		t.Errorf("expected an error status, got %d", w.Code)
	}
}

func TestLoadSeed_MissingFile(t *testing.T) {
	cfg := testConfig(t)
	ld := loader.New(1)
	store := newStore(cfg, ld, testLogger())

	if err := loadSeed(context.Background(), store, ld, filepath.Join(t.TempDir(), "missing.csv"), testLogger()); err == nil {
		t.Error("expected an error for a missing seed file")
	}
	if _, ok := store.Stats()["seed_file"]; ok {
		t.Error("seed should stay unset")
	}
}
