package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Field is a categorical attribute a view can be grouped or filtered by.
// Its value doubles as the column heading in exported tables.
type Field string

const (
	FieldRegion      Field = "Region"
	FieldState       Field = "State"
	FieldCity        Field = "City"
	FieldCategory    Field = "Category"
	FieldSubCategory Field = "Sub-Category"
	FieldSegment     Field = "Segment"
	FieldMonth       Field = "Month"
	FieldMonthYear   Field = "month_year"
)

// Value returns the display value of f for r.
func (f Field) Value(r Record) string {
	switch f {
	case FieldRegion:
		return r.Region
	case FieldState:
		return r.State
	case FieldCity:
		return r.City
	case FieldCategory:
		return r.Category
	case FieldSubCategory:
		return r.SubCategory
	case FieldSegment:
		return r.Segment
	case FieldMonth:
		return r.OrderDate.Month().String()
	case FieldMonthYear:
		return MonthLabel(r.OrderDate)
	default:
		return ""
	}
}

// SortKey returns a key that orders values of f correctly when compared as
// strings. Month fields sort by calendar position rather than by name.
func (f Field) SortKey(r Record) string {
	switch f {
	case FieldMonth:
		return fmt.Sprintf("%02d", int(r.OrderDate.Month()))
	case FieldMonthYear:
		return r.OrderDate.Format("2006-01")
	default:
		return f.Value(r)
	}
}

func (f Field) Valid() bool {
	switch f {
	case FieldRegion, FieldState, FieldCity, FieldCategory, FieldSubCategory,
		FieldSegment, FieldMonth, FieldMonthYear:
		return true
	}
	return false
}

// ParseField accepts the column heading or a lowercase slug ("sub-category").
func ParseField(s string) (Field, error) {
	for _, f := range []Field{FieldRegion, FieldState, FieldCity, FieldCategory,
		FieldSubCategory, FieldSegment, FieldMonth, FieldMonthYear} {
		if strings.EqualFold(string(f), s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// Measure is a numeric attribute that can be summed.
type Measure string

const (
	MeasureSales    Measure = "Sales"
	MeasureProfit   Measure = "Profit"
	MeasureQuantity Measure = "Quantity"
)

func (m Measure) Value(r Record) decimal.Decimal {
	switch m {
	case MeasureSales:
		return r.Sales
	case MeasureProfit:
		return r.Profit
	case MeasureQuantity:
		return decimal.NewFromInt(int64(r.Quantity))
	default:
		return decimal.Zero
	}
}

func ParseMeasure(s string) (Measure, error) {
	for _, m := range []Measure{MeasureSales, MeasureProfit, MeasureQuantity} {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown measure %q", s)
}
