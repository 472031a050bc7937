package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

func TestDownloadHandlers_HandleDownload(t *testing.T) {
	handlers := NewDownloadHandlers(testLogger())
	a := createTestAnalytics(t)

	tests := []struct {
		name            string
		table           string
		query           string
		wantDisposition string
		wantBody        string
	}{
		{
			name:            "category",
			table:           TableCategory,
			query:           "format=csv",
			wantDisposition: `attachment; filename="Category.csv"`,
			wantBody:        "Category,Sales\nFurniture,993.9\nOffice Supplies,14.62\nTechnology,907.152\n",
		},
		{
			name:            "region filtered",
			table:           TableRegion,
			query:           "region=West",
			wantDisposition: `attachment; filename="Region.csv"`,
			wantBody:        "Region,Sales\nWest,921.772\n",
		},
		{
			name:            "time series",
			table:           TableTimeSeries,
			query:           "start=2016-01-01",
			wantDisposition: `attachment; filename="TimeSeries.csv"`,
			wantBody:        "month_year,Sales\n2016 : Jun,14.62\n2016 : Nov,993.9\n",
		},
		{
			name:            "full rows keep the uploaded columns",
			table:           TableData,
			query:           "region=West&state=California",
			wantDisposition: `attachment; filename="Data.csv"`,
			wantBody: "Order Date,Region,State,City,Category,Sub-Category,Segment,Sales,Profit,Quantity\n" +
				"6/12/2016,West,California,Los Angeles,Office Supplies,Labels,Corporate,14.62,6.8714,2\n",
		},
		{
			name:            "empty view",
			table:           TableCategory,
			query:           "start=2015-01-01&end=2015-12-31",
			wantDisposition: `attachment; filename="Category.csv"`,
			wantBody:        "Category,Sales\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/download/"+tt.table+"?"+tt.query, nil)
			req.SetPathValue("table", tt.table)
			w := httptest.NewRecorder()

			handlers.HandleDownload(w, withSession(req, a))

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
				t.Errorf("unexpected content-type %q", ct)
			}
			if got := w.Header().Get("Content-Disposition"); got != tt.wantDisposition {
				t.Errorf("Content-Disposition = %q, want %q", got, tt.wantDisposition)
			}
			if diff := cmp.Diff(tt.wantBody, w.Body.String()); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDownloadHandlers_HandleDownload_XLSX(t *testing.T) {
	handlers := NewDownloadHandlers(testLogger())

	req := httptest.NewRequest(http.MethodGet, "/download/pivot?format=xlsx&region=South", nil)
	req.SetPathValue("table", TablePivot)
	w := httptest.NewRecorder()

	handlers.HandleDownload(w, withSession(req, createTestAnalytics(t)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="SubCategoryByMonth.xlsx"` {
		t.Errorf("unexpected Content-Disposition %q", got)
	}

	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("SubCategoryByMonth")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"Sub-Category", "November"},
		{"Bookcases", "261.96"},
		{"Chairs", "731.94"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDownloadHandlers_HandleDownload_Errors(t *testing.T) {
	handlers := NewDownloadHandlers(testLogger())
	a := createTestAnalytics(t)

	tests := []struct {
		name       string
		table      string
		query      string
		wantStatus int
	}{
		{"unknown table", "orders", "", http.StatusNotFound},
		{"unknown format", TableCategory, "format=pdf", http.StatusBadRequest},
		{"inverted range", TableCategory, "start=2016-12-01&end=2016-01-01", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/download/"+tt.table+"?"+tt.query, nil)
			req.SetPathValue("table", tt.table)
			w := httptest.NewRecorder()

			handlers.HandleDownload(w, withSession(req, a))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if !strings.Contains(w.Body.String(), `"success":false`) {
				t.Errorf("expected an error envelope, got %s", w.Body.String())
			}
		})
	}
}
