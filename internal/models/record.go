package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one sales transaction row.
type Record struct {
	Row         int
	OrderDate   time.Time
	Region      string
	State       string
	City        string
	Category    string
	SubCategory string
	Segment     string
	Sales       decimal.Decimal
	Profit      decimal.Decimal
	Quantity    int

	// Raw holds the uploaded cell values in Dataset.Header order.
	Raw []string
}

// Cells formats the typed fields in PreviewColumns order.
func (r Record) Cells() []string {
	return []string{r.OrderDate.Format(time.DateOnly), r.Region, r.State, r.City, r.Category,
		r.SubCategory, r.Segment, r.Sales.String(), r.Profit.String(), strconv.Itoa(r.Quantity)}
}

// Dataset is the parsed content of one uploaded file. It is never mutated
// after load; filtered views are new slices of its records.
type Dataset struct {
	Name     string
	Header   []string
	Records  []Record
	Skipped  int
	LoadedAt time.Time
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// DateBounds returns the earliest and latest order dates, truncated to the day.
func (d *Dataset) DateBounds() (time.Time, time.Time, bool) {
	if d.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}

	minDate, maxDate := d.Records[0].OrderDate, d.Records[0].OrderDate
	for _, r := range d.Records[1:] {
		if r.OrderDate.Before(minDate) {
			minDate = r.OrderDate
		}
		if r.OrderDate.After(maxDate) {
			maxDate = r.OrderDate
		}
	}
	return Day(minDate), Day(maxDate), true
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Criteria are the user's filter selections. An empty value set means no
// constraint on that level.
type Criteria struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Regions []string  `json:"regions"`
	States  []string  `json:"states"`
	Cities  []string  `json:"cities"`
}

// FilterOptions lists the values selectable at each level of the cascade.
type FilterOptions struct {
	MinDate time.Time `json:"min_date"`
	MaxDate time.Time `json:"max_date"`
	Regions []string  `json:"regions"`
	States  []string  `json:"states"`
	Cities  []string  `json:"cities"`
}
