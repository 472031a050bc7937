package templates

import (
	"html/template"

	"sales-explorer/internal/models"
)

// PageData is everything the dashboard page needs.
type PageData struct {
	Title       string
	Error       string
	MaxUploadMB int64
	Accept      string
	Dataset     *DatasetInfo
	Filters     FilterView
	Panels      *PanelsView
}

type DatasetInfo struct {
	Name    string
	Rows    int
	Skipped int
}

type Option struct {
	Value    string
	Selected bool
}

// FilterView is the cascading filter form. Dates are yyyy-mm-dd.
type FilterView struct {
	Start   string
	End     string
	Min     string
	Max     string
	Regions []Option
	States  []Option
	Cities  []Option
}

type Table struct {
	Title        string
	Header       []string
	Rows         [][]string
	Download     string
	DownloadXLSX string
	Note         string
}

type Chart struct {
	Title string
	SVG   template.HTML
}

// PanelsView holds the rendered charts and tables of one snapshot.
type PanelsView struct {
	Totals models.Totals
	Rows   int
	Error  string

	CategoryBar Chart
	RegionDonut Chart
	Monthly     Chart
	Treemap     Chart
	SegmentPie  Chart
	CategoryPie Chart
	Scatter     Chart

	CategoryTable Table
	RegionTable   Table
	MonthlyTable  Table
	PivotTable    Table
	Preview       Table
	Summary       Table

	DataDownload string
}
