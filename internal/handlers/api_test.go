package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sales-explorer/internal/charts"
	"sales-explorer/internal/models"
	"sales-explorer/internal/services"
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

func createTestAnalytics(t *testing.T) *services.Analytics {
	t.Helper()
	a := services.NewAnalytics(nil, services.Options{PreviewRows: 100, ScatterLimit: 1000}).WithLogger(testLogger())
	if err := a.Load(context.Background(), "Superstore.csv", strings.NewReader(testCSV)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return a
}

func emptyAnalytics() *services.Analytics {
	return services.NewAnalytics(nil, services.Options{}).WithLogger(testLogger())
}

func testPresenter() *Presenter {
	return NewPresenter(charts.NewRenderer(0, 0), 50<<20, testLogger())
}

func withSession(r *http.Request, a *services.Analytics) *http.Request {
	return r.WithContext(session.WithSession(r.Context(), "test-session", a))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return env
}

func TestAPIHandlers_HandleCategorySales(t *testing.T) {
	handlers := NewAPIHandlers(session.NewStore(10, time.Minute, emptyAnalytics), testLogger())

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/category-sales", nil), createTestAnalytics(t))
	w := httptest.NewRecorder()

	handlers.HandleCategorySales(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "private, no-cache" {
		t.Errorf("expected cache-control 'private, no-cache', got %q", cc)
	}

	env := decodeEnvelope(t, w)
	if !env.Success {
		t.Fatal("expected success=true in response")
	}

	var table models.AggregateTable
	if err := json.Unmarshal(env.Data, &table); err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, g := range table.Groups {
		got[strings.Join(g.Keys, "/")] = g.Value.String()
	}
	want := map[string]string{
		"Furniture":       "993.9",
		"Office Supplies": "14.62",
		"Technology":      "907.152",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("category sales mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIHandlers_HandleTotals_RegionFilter(t *testing.T) {
	handlers := NewAPIHandlers(session.NewStore(10, time.Minute, emptyAnalytics), testLogger())

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/totals?region=West", nil), createTestAnalytics(t))
	w := httptest.NewRecorder()

	handlers.HandleTotals(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var totals models.Totals
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &totals); err != nil {
		t.Fatal(err)
	}
	if totals.Rows != 2 || totals.Quantity != 8 || totals.Sales.String() != "921.772" {
		t.Errorf("totals = %+v, want 2 rows, quantity 8, sales 921.772", totals)
	}
}

func TestAPIHandlers_HandleOptions_PrunesStaleSelections(t *testing.T) {
	handlers := NewAPIHandlers(session.NewStore(10, time.Minute, emptyAnalytics), testLogger())

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/options?region=West&state=Kentucky", nil), createTestAnalytics(t))
	w := httptest.NewRecorder()

	handlers.HandleOptions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp optionsResponse
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &resp); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"California", "Washington"}, resp.Options.States); diff != "" {
		t.Errorf("state options mismatch (-want +got):\n%s", diff)
	}
	if len(resp.Criteria.States) != 0 {
		t.Errorf("stale state selection should be pruned, got %v", resp.Criteria.States)
	}
	if got := resp.Criteria.Start.Format(time.DateOnly); got != "2014-06-09" {
		t.Errorf("start should default to the earliest order date, got %s", got)
	}
}

func TestAPIHandlers_EmptyView(t *testing.T) {
	handlers := NewAPIHandlers(session.NewStore(10, time.Minute, emptyAnalytics), testLogger())
	a := createTestAnalytics(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"category sales", handlers.HandleCategorySales, `"rows":[]`},
		{"monthly sales", handlers.HandleMonthlySales, `"data":[]`},
		{"treemap", handlers.HandleTreemap, `"data":[]`},
		{"scatter", handlers.HandleScatter, `"data":[]`},
		{"summary", handlers.HandleSummary, `"rows":[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodGet, "/api/x?start=2015-01-01&end=2015-12-31", nil), a)
			w := httptest.NewRecorder()

			tt.handler(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			if body := w.Body.String(); !strings.Contains(body, tt.want) {
				t.Errorf("body %s should contain %s", body, tt.want)
			}
		})
	}
}

func TestAPIHandlers_Errors(t *testing.T) {
	handlers := NewAPIHandlers(session.NewStore(10, time.Minute, emptyAnalytics), testLogger())

	tests := []struct {
		name       string
		target     string
		analytics  *services.Analytics
		wantStatus int
		wantCode   string
	}{
		{"inverted range", "/api/totals?start=2016-12-01&end=2016-01-01", createTestAnalytics(t), http.StatusBadRequest, "INVALID_RANGE"},
		{"bad date", "/api/totals?start=yesterday", createTestAnalytics(t), http.StatusBadRequest, "BAD_REQUEST"},
		{"no dataset", "/api/totals", emptyAnalytics(), http.StatusConflict, "NO_DATASET"},
		{"no session", "/api/totals", nil, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.analytics != nil {
				req = withSession(req, tt.analytics)
			}
			w := httptest.NewRecorder()

			handlers.HandleTotals(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Success || env.Error == nil {
				t.Fatal("expected an error envelope")
			}
			if env.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, env.Error.Code)
			}
		})
	}
}

func TestAPIHandlers_HandlePivot(t *testing.T) {
	handlers := NewAPIHandlers(session.NewStore(10, time.Minute, emptyAnalytics), testLogger())

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/pivot?region=South", nil), createTestAnalytics(t))
	w := httptest.NewRecorder()

	handlers.HandlePivot(w, req)

	var pivot models.PivotTable
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &pivot); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"November"}, pivot.Columns); diff != "" {
		t.Errorf("pivot columns mismatch (-want +got):\n%s", diff)
	}
	if len(pivot.Lines) != 2 || pivot.Lines[0].Key != "Bookcases" || pivot.Lines[1].Key != "Chairs" {
		t.Errorf("pivot rows = %+v", pivot.Lines)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(session.NewStore(10, time.Minute, emptyAnalytics), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handlers.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var health map[string]string
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %q", health["status"])
	}
	if _, err := time.Parse(time.RFC3339, health["timestamp"]); err != nil {
		t.Errorf("timestamp should be RFC3339: %v", err)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	store := session.NewStore(10, time.Minute, emptyAnalytics)
	store.Create()
	handlers := NewAPIHandlers(store, testLogger())

	req := withSession(httptest.NewRequest(http.MethodGet, "/admin/stats", nil), createTestAnalytics(t))
	w := httptest.NewRecorder()

	handlers.HandleStats(w, req)

	var stats struct {
		Sessions map[string]any `json:"sessions"`
		Session  map[string]any `json:"session"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Sessions["active"] != float64(1) {
		t.Errorf("expected 1 active session, got %v", stats.Sessions["active"])
	}
	if stats.Session["record_count"] != float64(4) {
		t.Errorf("expected 4 records in session stats, got %v", stats.Session["record_count"])
	}
}
