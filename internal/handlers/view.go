package handlers

import (
	"html/template"
	"log/slog"
	"slices"
	"strings"

	"sales-explorer/internal/charts"
	"sales-explorer/internal/export"
	"sales-explorer/internal/loader"
	"sales-explorer/internal/models"
	"sales-explorer/internal/services"
	"sales-explorer/internal/ui/templates"
)

const pageTitle = "Sample SuperStore EDA"

// Presenter turns snapshots into template view models.
type Presenter struct {
	charts      *charts.Renderer
	logger      *slog.Logger
	maxUploadMB int64
}

func NewPresenter(renderer *charts.Renderer, maxUploadBytes int64, logger *slog.Logger) *Presenter {
	return &Presenter{
		charts:      renderer,
		logger:      logger,
		maxUploadMB: maxUploadBytes >> 20,
	}
}

func (p *Presenter) chart(title string, render func(string) (template.HTML, error)) templates.Chart {
	svg, err := render(title)
	if err != nil {
		p.logger.Error("chart render failed", "chart", title, "error", err)
		svg = p.charts.Placeholder()
	}
	return templates.Chart{Title: title, SVG: svg}
}

func tableOf(title string, t models.Tabular) templates.Table {
	rows := t.Rows()
	out := templates.Table{
		Title:  title,
		Header: t.Header(),
		Rows:   make([][]string, 0, len(rows)),
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = export.FormatCell(v)
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

func downloadLink(table string, c models.Criteria, format export.Format) string {
	q := criteriaQuery(c)
	q.Set("format", string(format))
	return "/download/" + table + "?" + q.Encode()
}

func withDownloads(t templates.Table, table string, c models.Criteria) templates.Table {
	t.Download = downloadLink(table, c, export.FormatCSV)
	t.DownloadXLSX = downloadLink(table, c, export.FormatXLSX)
	return t
}

// Panels renders every chart and table of snap.
func (p *Presenter) Panels(snap *services.Snapshot) *templates.PanelsView {
	c := snap.Criteria

	preview := tableOf("Data preview", snap.Preview)
	if len(snap.Preview) < len(snap.View) {
		preview.Note = "Showing the first rows of the filtered data."
	}

	return &templates.PanelsView{
		Totals: snap.Totals,
		Rows:   len(snap.View),

		CategoryBar: p.chart("Category wise Sales", func(title string) (template.HTML, error) {
			return p.charts.Bar(title, snap.CategorySales)
		}),
		RegionDonut: p.chart("Region wise Sales", func(title string) (template.HTML, error) {
			return p.charts.Donut(title, snap.RegionSales)
		}),
		Monthly: p.chart("Time Series Analysis", func(title string) (template.HTML, error) {
			return p.charts.Line(title, snap.Monthly)
		}),
		Treemap: p.chart("Hierarchical view of Sales using TreeMap", func(title string) (template.HTML, error) {
			return p.charts.Treemap(title, snap.Treemap), nil
		}),
		SegmentPie: p.chart("Segment wise Sales", func(title string) (template.HTML, error) {
			return p.charts.Pie(title, snap.SegmentSales)
		}),
		CategoryPie: p.chart("Category wise Sales", func(title string) (template.HTML, error) {
			return p.charts.Pie(title, snap.CategorySales)
		}),
		Scatter: p.chart("Relationship between Sales and Profits using Scatter Plot", func(title string) (template.HTML, error) {
			return p.charts.Scatter(title, snap.Scatter)
		}),

		CategoryTable: withDownloads(tableOf("Category View Data", snap.CategorySales), TableCategory, c),
		RegionTable:   withDownloads(tableOf("Region View Data", snap.RegionSales), TableRegion, c),
		MonthlyTable:  withDownloads(tableOf("View Data Of TimeSeries", snap.Monthly), TableTimeSeries, c),
		PivotTable:    withDownloads(tableOf("Month wise Sub-Category Table", snap.Pivot), TablePivot, c),
		Preview:       preview,
		Summary:       withDownloads(tableOf("Summary statistics", snap.Summary), TableSummary, c),

		DataDownload: downloadLink(TableData, c, export.FormatCSV),
	}
}

// Filters renders the cascade options with the normalised selection marked.
func (p *Presenter) Filters(snap *services.Snapshot) templates.FilterView {
	return templates.FilterView{
		Start:   formatDate(snap.Criteria.Start),
		End:     formatDate(snap.Criteria.End),
		Min:     formatDate(snap.Options.MinDate),
		Max:     formatDate(snap.Options.MaxDate),
		Regions: options(snap.Options.Regions, snap.Criteria.Regions),
		States:  options(snap.Options.States, snap.Criteria.States),
		Cities:  options(snap.Options.Cities, snap.Criteria.Cities),
	}
}

func options(offered, selected []string) []templates.Option {
	out := make([]templates.Option, len(offered))
	for i, v := range offered {
		out[i] = templates.Option{Value: v, Selected: slices.Contains(selected, v)}
	}
	return out
}

// Page builds the full page. snap may be nil when no dataset is loaded or
// the criteria could not be applied.
func (p *Presenter) Page(ds *models.Dataset, snap *services.Snapshot, message string) templates.PageData {
	page := templates.PageData{
		Title:       pageTitle,
		Error:       message,
		MaxUploadMB: p.maxUploadMB,
		Accept:      strings.Join(loader.Extensions, ","),
	}
	if ds.Len() == 0 {
		return page
	}

	page.Dataset = &templates.DatasetInfo{Name: ds.Name, Rows: ds.Len(), Skipped: ds.Skipped}
	if snap != nil {
		page.Filters = p.Filters(snap)
		page.Panels = p.Panels(snap)
	}
	return page
}
