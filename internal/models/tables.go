package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tabular is anything that can be written out as a header plus rows.
// Cell values are strings, ints, decimals or times.
type Tabular interface {
	Header() []string
	Rows() [][]any
}

type AggregateRow struct {
	Keys  []string        `json:"keys"`
	Value decimal.Decimal `json:"value"`
	Count int             `json:"count"`
}

// AggregateTable is a view grouped by one or more fields with a summed measure.
type AggregateTable struct {
	GroupBy []Field        `json:"group_by"`
	Measure Measure        `json:"measure"`
	Groups  []AggregateRow `json:"rows"`
}

func (t AggregateTable) Total() decimal.Decimal {
	total := decimal.Zero
	for _, g := range t.Groups {
		total = total.Add(g.Value)
	}
	return total
}

func (t AggregateTable) Header() []string {
	header := make([]string, 0, len(t.GroupBy)+1)
	for _, f := range t.GroupBy {
		header = append(header, string(f))
	}
	return append(header, string(t.Measure))
}

func (t AggregateTable) Rows() [][]any {
	rows := make([][]any, 0, len(t.Groups))
	for _, g := range t.Groups {
		row := make([]any, 0, len(g.Keys)+1)
		for _, k := range g.Keys {
			row = append(row, k)
		}
		rows = append(rows, append(row, g.Value))
	}
	return rows
}

// MonthlyPoint is the summed sales of one calendar month.
type MonthlyPoint struct {
	Month time.Time       `json:"month"`
	Label string          `json:"month_year"`
	Sales decimal.Decimal `json:"sales"`
}

// MonthLabel formats t the way the time series is labelled: "2016 : Jan".
func MonthLabel(t time.Time) string {
	return t.Format("2006 : Jan")
}

type MonthlySeries []MonthlyPoint

func (s MonthlySeries) Header() []string {
	return []string{string(FieldMonthYear), string(MeasureSales)}
}

func (s MonthlySeries) Rows() [][]any {
	rows := make([][]any, 0, len(s))
	for _, p := range s {
		rows = append(rows, []any{p.Label, p.Sales})
	}
	return rows
}

type PivotRow struct {
	Key   string                `json:"key"`
	Cells []decimal.NullDecimal `json:"cells"`
}

// PivotTable cross-tabulates a measure by two fields. Cells with no
// contributing rows are null.
type PivotTable struct {
	RowField Field      `json:"row_field"`
	ColField Field      `json:"col_field"`
	Measure  Measure    `json:"measure"`
	Columns  []string   `json:"columns"`
	Lines    []PivotRow `json:"rows"`
}

func (p PivotTable) Header() []string {
	return append([]string{string(p.RowField)}, p.Columns...)
}

func (p PivotTable) Rows() [][]any {
	rows := make([][]any, 0, len(p.Lines))
	for _, line := range p.Lines {
		row := make([]any, 0, len(line.Cells)+1)
		row = append(row, line.Key)
		for _, c := range line.Cells {
			if c.Valid {
				row = append(row, c.Decimal)
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// TreeNode is one box of the hierarchical sales view.
type TreeNode struct {
	Field    Field           `json:"field"`
	Label    string          `json:"label"`
	Value    decimal.Decimal `json:"value"`
	Children []TreeNode      `json:"children,omitempty"`
}

type ScatterPoint struct {
	Sales    decimal.Decimal `json:"sales"`
	Profit   decimal.Decimal `json:"profit"`
	Quantity int             `json:"quantity"`
}

type Totals struct {
	Rows     int             `json:"rows"`
	Sales    decimal.Decimal `json:"sales"`
	Profit   decimal.Decimal `json:"profit"`
	Quantity int             `json:"quantity"`
}

// RecordTable exports records with every column of the uploaded file.
type RecordTable struct {
	Columns []string
	Records []Record
}

func (t RecordTable) Header() []string {
	return t.Columns
}

func (t RecordTable) Rows() [][]any {
	rows := make([][]any, 0, len(t.Records))
	for _, r := range t.Records {
		row := make([]any, len(r.Raw))
		for i, v := range r.Raw {
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows
}

// PreviewColumns are the columns shown in the on-page data preview.
var PreviewColumns = []string{"Order Date", "Region", "State", "City", "Category",
	"Sub-Category", "Segment", "Sales", "Profit", "Quantity"}

// PreviewTable renders records with the typed columns only.
type PreviewTable []Record

func (t PreviewTable) Header() []string {
	return PreviewColumns
}

func (t PreviewTable) Rows() [][]any {
	rows := make([][]any, 0, len(t))
	for _, r := range t {
		rows = append(rows, []any{r.OrderDate, r.Region, r.State, r.City, r.Category,
			r.SubCategory, r.Segment, r.Sales, r.Profit, r.Quantity})
	}
	return rows
}

// StringTable is a pre-formatted table such as descriptive statistics.
type StringTable struct {
	Columns []string   `json:"columns"`
	Values  [][]string `json:"rows"`
}

func (t StringTable) Header() []string {
	return t.Columns
}

func (t StringTable) Rows() [][]any {
	rows := make([][]any, 0, len(t.Values))
	for _, v := range t.Values {
		row := make([]any, len(v))
		for i := range v {
			row[i] = v[i]
		}
		rows = append(rows, row)
	}
	return rows
}
