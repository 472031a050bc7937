package pipeline

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-explorer/internal/models"
)

type group struct {
	keys  []string
	order []string
	sum   decimal.Decimal
	count int
}

// AggregateSum groups view by the given fields and sums measure per group.
// Groups are ordered by key; month fields order chronologically.
func AggregateSum(view []models.Record, groupBy []models.Field, measure models.Measure) models.AggregateTable {
	index := make(map[string]*group)
	for _, r := range view {
		keys := make([]string, len(groupBy))
		order := make([]string, len(groupBy))
		for i, f := range groupBy {
			keys[i] = f.Value(r)
			order[i] = f.SortKey(r)
		}

		id := strings.Join(keys, "\x1f")
		g, ok := index[id]
		if !ok {
			g = &group{keys: keys, order: order}
			index[id] = g
		}
		g.sum = g.sum.Add(measure.Value(r))
		g.count++
	}

	groups := make([]*group, 0, len(index))
	for _, g := range index {
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b *group) int {
		return slices.Compare(a.order, b.order)
	})

	table := models.AggregateTable{
		GroupBy: slices.Clone(groupBy),
		Measure: measure,
		Groups:  make([]models.AggregateRow, 0, len(groups)),
	}
	for _, g := range groups {
		table.Groups = append(table.Groups, models.AggregateRow{
			Keys:  g.keys,
			Value: g.sum,
			Count: g.count,
		})
	}
	return table
}

// MonthlyTimeSeries sums sales per calendar month, oldest month first.
func MonthlyTimeSeries(view []models.Record) models.MonthlySeries {
	sums := make(map[time.Time]decimal.Decimal)
	for _, r := range view {
		y, m, _ := r.OrderDate.Date()
		month := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		sums[month] = sums[month].Add(r.Sales)
	}

	series := make(models.MonthlySeries, 0, len(sums))
	for month, total := range sums {
		series = append(series, models.MonthlyPoint{
			Month: month,
			Label: models.MonthLabel(month),
			Sales: total,
		})
	}
	slices.SortFunc(series, func(a, b models.MonthlyPoint) int {
		return a.Month.Compare(b.Month)
	})
	return series
}

// Pivot cross-tabulates view, summing measure for each (rowField, colField)
// pair. Rows and columns follow the fields' sort order.
func Pivot(view []models.Record, rowField, colField models.Field, measure models.Measure) models.PivotTable {
	type axis struct {
		label string
		order string
	}
	rowSeen := make(map[string]axis)
	colSeen := make(map[string]axis)
	cells := make(map[[2]string]decimal.Decimal)

	for _, r := range view {
		rk, ck := rowField.Value(r), colField.Value(r)
		rowSeen[rk] = axis{label: rk, order: rowField.SortKey(r)}
		colSeen[ck] = axis{label: ck, order: colField.SortKey(r)}
		cells[[2]string{rk, ck}] = cells[[2]string{rk, ck}].Add(measure.Value(r))
	}

	sorted := func(seen map[string]axis) []string {
		axes := make([]axis, 0, len(seen))
		for _, a := range seen {
			axes = append(axes, a)
		}
		slices.SortFunc(axes, func(a, b axis) int {
			if c := strings.Compare(a.order, b.order); c != 0 {
				return c
			}
			return strings.Compare(a.label, b.label)
		})
		labels := make([]string, len(axes))
		for i, a := range axes {
			labels[i] = a.label
		}
		return labels
	}

	table := models.PivotTable{
		RowField: rowField,
		ColField: colField,
		Measure:  measure,
		Columns:  sorted(colSeen),
		Lines:    make([]models.PivotRow, 0, len(rowSeen)),
	}
	for _, rk := range sorted(rowSeen) {
		line := models.PivotRow{Key: rk, Cells: make([]decimal.NullDecimal, len(table.Columns))}
		for i, ck := range table.Columns {
			if v, ok := cells[[2]string{rk, ck}]; ok {
				line.Cells[i] = decimal.NewNullDecimal(v)
			}
		}
		table.Lines = append(table.Lines, line)
	}
	return table
}

// Hierarchy nests sums of measure along path, e.g. Region → Category →
// Sub-Category for the treemap. Siblings are ordered by descending value.
func Hierarchy(view []models.Record, path []models.Field, measure models.Measure) []models.TreeNode {
	if len(path) == 0 {
		return nil
	}

	field := path[0]
	buckets := make(map[string][]models.Record)
	var labels []string
	for _, r := range view {
		v := field.Value(r)
		if _, ok := buckets[v]; !ok {
			labels = append(labels, v)
		}
		buckets[v] = append(buckets[v], r)
	}

	nodes := make([]models.TreeNode, 0, len(labels))
	for _, label := range labels {
		rows := buckets[label]
		total := decimal.Zero
		for _, r := range rows {
			total = total.Add(measure.Value(r))
		}
		nodes = append(nodes, models.TreeNode{
			Field:    field,
			Label:    label,
			Value:    total,
			Children: Hierarchy(rows, path[1:], measure),
		})
	}
	slices.SortStableFunc(nodes, func(a, b models.TreeNode) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
	return nodes
}

// Summarize totals the numeric fields of view.
func Summarize(view []models.Record) models.Totals {
	t := models.Totals{Rows: len(view)}
	for _, r := range view {
		t.Sales = t.Sales.Add(r.Sales)
		t.Profit = t.Profit.Add(r.Profit)
		t.Quantity += r.Quantity
	}
	return t
}

// Scatter returns up to limit sales/profit/quantity points. A limit of zero
// or less returns every row.
func Scatter(view []models.Record, limit int) []models.ScatterPoint {
	n := len(view)
	if limit > 0 && n > limit {
		n = limit
	}
	points := make([]models.ScatterPoint, n)
	for i := range n {
		points[i] = models.ScatterPoint{
			Sales:    view[i].Sales,
			Profit:   view[i].Profit,
			Quantity: view[i].Quantity,
		}
	}
	return points
}

// Preview returns the first limit rows of view.
func Preview(view []models.Record, limit int) []models.Record {
	if limit >= 0 && len(view) > limit {
		return view[:limit]
	}
	return view
}
