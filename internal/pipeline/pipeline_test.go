package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"sales-explorer/internal/models"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleRecords() []models.Record {
	rows := []models.Record{
		{OrderDate: date(2016, 11, 8), Region: "South", State: "Kentucky", City: "Henderson", Category: "Furniture", SubCategory: "Bookcases", Segment: "Consumer", Sales: dec("261.96"), Profit: dec("41.9136"), Quantity: 2},
		{OrderDate: date(2016, 11, 8), Region: "South", State: "Kentucky", City: "Henderson", Category: "Furniture", SubCategory: "Chairs", Segment: "Consumer", Sales: dec("731.94"), Profit: dec("219.582"), Quantity: 3},
		{OrderDate: date(2016, 6, 12), Region: "West", State: "California", City: "Los Angeles", Category: "Office Supplies", SubCategory: "Labels", Segment: "Corporate", Sales: dec("14.62"), Profit: dec("6.8714"), Quantity: 2},
		{OrderDate: date(2015, 10, 11), Region: "South", State: "Florida", City: "Fort Lauderdale", Category: "Furniture", SubCategory: "Tables", Segment: "Consumer", Sales: dec("957.5775"), Profit: dec("-383.031"), Quantity: 5},
		{OrderDate: date(2015, 10, 11), Region: "South", State: "Florida", City: "Fort Lauderdale", Category: "Office Supplies", SubCategory: "Storage", Segment: "Consumer", Sales: dec("22.368"), Profit: dec("2.5164"), Quantity: 2},
		{OrderDate: date(2014, 6, 9), Region: "West", State: "California", City: "Los Angeles", Category: "Furniture", SubCategory: "Furnishings", Segment: "Consumer", Sales: dec("48.86"), Profit: dec("14.1694"), Quantity: 7},
		{OrderDate: date(2014, 6, 9), Region: "West", State: "Washington", City: "Seattle", Category: "Technology", SubCategory: "Phones", Segment: "Consumer", Sales: dec("907.152"), Profit: dec("90.7152"), Quantity: 6},
		{OrderDate: date(2017, 4, 15), Region: "East", State: "New York", City: "New York City", Category: "Technology", SubCategory: "Phones", Segment: "Home Office", Sales: dec("911.424"), Profit: dec("68.3568"), Quantity: 4},
		{OrderDate: date(2017, 12, 1), Region: "East", State: "Pennsylvania", City: "Philadelphia", Category: "Office Supplies", SubCategory: "Binders", Segment: "Corporate", Sales: dec("15.552"), Profit: dec("-5.4432"), Quantity: 3},
		{OrderDate: date(2016, 11, 22), Region: "Central", State: "Texas", City: "Houston", Category: "Office Supplies", SubCategory: "Labels", Segment: "Consumer", Sales: dec("29.472"), Profit: dec("9.9468"), Quantity: 3},
	}
	for i := range rows {
		rows[i].Row = i
	}
	return rows
}

func allTime() models.Criteria {
	return models.Criteria{Start: date(2000, 1, 1), End: date(2030, 12, 31)}
}

func rowIDs(rows []models.Record) []int {
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.Row
	}
	return ids
}

func isSubset(t *testing.T, sub, of []models.Record) {
	t.Helper()
	ids := make(map[int]bool, len(of))
	for _, r := range of {
		ids[r.Row] = true
	}
	for _, r := range sub {
		if !ids[r.Row] {
			t.Errorf("row %d is not part of the input", r.Row)
		}
	}
}

func TestFilterByDateRange(t *testing.T) {
	rows := sampleRecords()

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []int
	}{
		{"whole range", date(2014, 1, 1), date(2017, 12, 31), []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"single day", date(2016, 11, 8), date(2016, 11, 8), []int{0, 1}},
		{"inclusive bounds", date(2015, 10, 11), date(2016, 6, 12), []int{2, 3, 4}},
		{"nothing in range", date(2010, 1, 1), date(2010, 12, 31), []int{}},
		{"time of day ignored", date(2016, 11, 8).Add(15 * time.Hour), date(2016, 11, 8).Add(time.Hour), []int{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterByDateRange(rows, tt.start, tt.end)
			if err != nil {
				t.Fatalf("FilterByDateRange() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, rowIDs(got)); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
			isSubset(t, got, rows)
		})
	}
}

func TestFilterByDateRange_InvalidRange(t *testing.T) {
	_, err := FilterByDateRange(sampleRecords(), date(2017, 1, 2), date(2017, 1, 1))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestFilterByCategoricalSet_EmptyIsNoOp(t *testing.T) {
	rows := sampleRecords()

	for _, allowed := range [][]string{nil, {}} {
		got := FilterByCategoricalSet(rows, models.FieldRegion, allowed)
		if len(got) != len(rows) || &got[0] != &rows[0] {
			t.Fatalf("empty allowed set should return the input slice unchanged")
		}
	}
}

func TestFilterByCategoricalSet(t *testing.T) {
	rows := sampleRecords()

	got := FilterByCategoricalSet(rows, models.FieldRegion, []string{"West", "Central"})
	if diff := cmp.Diff([]int{2, 5, 6, 9}, rowIDs(got)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	none := FilterByCategoricalSet(rows, models.FieldCity, []string{"Atlantis"})
	if len(none) != 0 {
		t.Errorf("expected no rows, got %d", len(none))
	}
}

func TestFilterByCategoricalSet_NeverReintroducesRows(t *testing.T) {
	rows := sampleRecords()
	west := FilterByCategoricalSet(rows, models.FieldRegion, []string{"West"})

	// Kentucky only exists in the South; narrowing West by it must not bring it back.
	got := FilterByCategoricalSet(west, models.FieldState, []string{"Kentucky", "California"})
	isSubset(t, got, west)
	for _, r := range got {
		if r.Region != "West" {
			t.Errorf("row %d from region %q leaked through", r.Row, r.Region)
		}
	}
	if diff := cmp.Diff([]int{2, 5}, rowIDs(got)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose(t *testing.T) {
	rows := sampleRecords()
	stage := Compose(
		By(models.FieldRegion, []string{"South"}),
		By(models.FieldState, nil),
		By(models.FieldCity, []string{"Henderson"}),
	)
	if diff := cmp.Diff([]int{0, 1}, rowIDs(stage(rows))); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_Cascade(t *testing.T) {
	rows := sampleRecords()
	c := allTime()
	c.Regions = []string{"West"}

	cascade, err := Apply(rows, c)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if diff := cmp.Diff([]string{"South", "West", "East", "Central"}, cascade.Options.Regions); diff != "" {
		t.Errorf("region options (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"California", "Washington"}, cascade.Options.States); diff != "" {
		t.Errorf("state options should be scoped to the region (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Los Angeles", "Seattle"}, cascade.Options.Cities); diff != "" {
		t.Errorf("city options (-want +got):\n%s", diff)
	}

	isSubset(t, cascade.Dated, rows)
	isSubset(t, cascade.ByRegion, cascade.Dated)
	isSubset(t, cascade.ByState, cascade.ByRegion)
	isSubset(t, cascade.View, cascade.ByState)
}

func TestApply_InvalidRange(t *testing.T) {
	c := models.Criteria{Start: date(2017, 2, 1), End: date(2017, 1, 1)}
	if _, err := Apply(sampleRecords(), c); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestApply_ViewIsAlwaysSubset(t *testing.T) {
	rows := sampleRecords()
	criteria := []models.Criteria{
		allTime(),
		{Start: date(2016, 1, 1), End: date(2016, 12, 31), Regions: []string{"South"}},
		{Start: date(2014, 1, 1), End: date(2017, 12, 31), States: []string{"California", "Texas"}},
		{Start: date(2014, 1, 1), End: date(2017, 12, 31), Regions: []string{"East"}, Cities: []string{"Seattle"}},
		{Start: date(2016, 11, 8), End: date(2016, 11, 8), Regions: []string{"Nowhere"}},
	}
	for _, c := range criteria {
		cascade, err := Apply(rows, c)
		if err != nil {
			t.Fatalf("Apply(%+v) error = %v", c, err)
		}
		isSubset(t, cascade.View, rows)
	}
}

func TestEndToEnd_WestRegionCategoryTotals(t *testing.T) {
	rows := sampleRecords()
	c := allTime()
	c.Regions = []string{"West"}
	c.States = []string{}

	cascade, err := Apply(rows, c)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	wantWest := decimal.Zero
	for _, r := range rows {
		if r.Region == "West" {
			wantWest = wantWest.Add(r.Sales)
		}
	}

	if len(cascade.View) != 3 {
		t.Fatalf("expected all 3 West rows, got %d", len(cascade.View))
	}

	table := AggregateSum(cascade.View, []models.Field{models.FieldCategory}, models.MeasureSales)
	if !table.Total().Equal(wantWest) {
		t.Errorf("category total = %s, want %s", table.Total(), wantWest)
	}
}

func TestNormalize_PrunesStaleSelections(t *testing.T) {
	rows := sampleRecords()
	c := allTime()
	c.Regions = []string{"West"}
	c.States = []string{"Kentucky"}
	c.Cities = []string{"Henderson"}

	cascade, eff, err := Normalize(rows, c)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(eff.States) != 0 || len(eff.Cities) != 0 {
		t.Errorf("stale selections should be dropped, got states=%v cities=%v", eff.States, eff.Cities)
	}
	if diff := cmp.Diff([]int{2, 5, 6}, rowIDs(cascade.View)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateSum(t *testing.T) {
	view := sampleRecords()

	got := AggregateSum(view, []models.Field{models.FieldCategory}, models.MeasureSales)
	want := models.AggregateTable{
		GroupBy: []models.Field{models.FieldCategory},
		Measure: models.MeasureSales,
		Groups: []models.AggregateRow{
			{Keys: []string{"Furniture"}, Value: dec("2000.3375"), Count: 4},
			{Keys: []string{"Office Supplies"}, Value: dec("82.012"), Count: 4},
			{Keys: []string{"Technology"}, Value: dec("1818.576"), Count: 2},
		},
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("AggregateSum() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateSum_SumOfSums(t *testing.T) {
	view := sampleRecords()
	total := Summarize(view).Sales

	groupings := [][]models.Field{
		{models.FieldCategory},
		{models.FieldRegion},
		{models.FieldRegion, models.FieldCategory},
		{models.FieldSubCategory, models.FieldMonth},
	}
	for _, g := range groupings {
		table := AggregateSum(view, g, models.MeasureSales)
		if !table.Total().Equal(total) {
			t.Errorf("sum of %v groups = %s, want %s", g, table.Total(), total)
		}
	}
}

func TestAggregateSum_MultiFieldOrdering(t *testing.T) {
	table := AggregateSum(sampleRecords(), []models.Field{models.FieldRegion, models.FieldMonth}, models.MeasureQuantity)

	var got [][]string
	for _, g := range table.Groups {
		got = append(got, g.Keys)
	}
	want := [][]string{
		{"Central", "November"},
		{"East", "April"},
		{"East", "December"},
		{"South", "October"},
		{"South", "November"},
		{"West", "June"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("group order (-want +got):\n%s", diff)
	}
}

func TestAggregateSum_EmptyView(t *testing.T) {
	table := AggregateSum(nil, []models.Field{models.FieldCategory}, models.MeasureSales)
	if len(table.Groups) != 0 {
		t.Errorf("expected no groups, got %d", len(table.Groups))
	}
	if !table.Total().IsZero() {
		t.Errorf("expected zero total, got %s", table.Total())
	}
}

func TestMonthlyTimeSeries(t *testing.T) {
	view := sampleRecords()
	series := MonthlyTimeSeries(view)

	wantLabels := []string{"2014 : Jun", "2015 : Oct", "2016 : Jun", "2016 : Nov", "2017 : Apr", "2017 : Dec"}
	var labels []string
	for _, p := range series {
		labels = append(labels, p.Label)
	}
	if diff := cmp.Diff(wantLabels, labels); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}

	seen := make(map[time.Time]bool)
	for i, p := range series {
		if seen[p.Month] {
			t.Errorf("duplicate month %s", p.Label)
		}
		seen[p.Month] = true
		if i > 0 && !series[i-1].Month.Before(p.Month) {
			t.Errorf("series not chronological at %s", p.Label)
		}
	}

	distinct := make(map[string]bool)
	for _, r := range view {
		distinct[r.OrderDate.Format("2006-01")] = true
	}
	if len(series) != len(distinct) {
		t.Errorf("series has %d months, view has %d", len(series), len(distinct))
	}

	if !series[3].Sales.Equal(dec("1023.372")) {
		t.Errorf("2016 : Nov sales = %s, want 1023.372", series[3].Sales)
	}
}

func TestPivot(t *testing.T) {
	view := FilterByCategoricalSet(sampleRecords(), models.FieldCategory, []string{"Office Supplies"})
	got := Pivot(view, models.FieldSubCategory, models.FieldMonth, models.MeasureSales)

	if diff := cmp.Diff([]string{"June", "October", "November", "December"}, got.Columns); diff != "" {
		t.Errorf("columns should follow calendar order (-want +got):\n%s", diff)
	}

	want := []models.PivotRow{
		{Key: "Binders", Cells: []decimal.NullDecimal{{}, {}, {}, decimal.NewNullDecimal(dec("15.552"))}},
		{Key: "Labels", Cells: []decimal.NullDecimal{decimal.NewNullDecimal(dec("14.62")), {}, decimal.NewNullDecimal(dec("29.472")), {}}},
		{Key: "Storage", Cells: []decimal.NullDecimal{{}, decimal.NewNullDecimal(dec("22.368")), {}, {}}},
	}
	if diff := cmp.Diff(want, got.Lines, decimalEqual); diff != "" {
		t.Errorf("pivot rows (-want +got):\n%s", diff)
	}
}

func TestHierarchy(t *testing.T) {
	view := sampleRecords()
	path := []models.Field{models.FieldRegion, models.FieldCategory, models.FieldSubCategory}
	tree := Hierarchy(view, path, models.MeasureSales)

	total := decimal.Zero
	for i, node := range tree {
		total = total.Add(node.Value)
		if i > 0 && tree[i-1].Value.LessThan(node.Value) {
			t.Errorf("siblings not ordered by value at %s", node.Label)
		}
		children := decimal.Zero
		for _, c := range node.Children {
			children = children.Add(c.Value)
			if c.Field != models.FieldCategory {
				t.Errorf("child field = %s, want Category", c.Field)
			}
		}
		if !children.Equal(node.Value) {
			t.Errorf("%s children sum %s, node %s", node.Label, children, node.Value)
		}
	}
	if !total.Equal(Summarize(view).Sales) {
		t.Errorf("tree total %s, want %s", total, Summarize(view).Sales)
	}
	if tree[0].Label != "South" {
		t.Errorf("largest region = %s, want South", tree[0].Label)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sampleRecords())
	want := models.Totals{Rows: 10, Sales: dec("3900.9255"), Profit: dec("65.5974"), Quantity: 37}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
}

func TestScatterAndPreviewLimits(t *testing.T) {
	view := sampleRecords()

	if n := len(Scatter(view, 4)); n != 4 {
		t.Errorf("Scatter limit: got %d points", n)
	}
	if n := len(Scatter(view, 0)); n != len(view) {
		t.Errorf("Scatter without limit: got %d points", n)
	}
	if n := len(Preview(view, 5)); n != 5 {
		t.Errorf("Preview limit: got %d rows", n)
	}
	if n := len(Preview(view, 50)); n != len(view) {
		t.Errorf("Preview above size: got %d rows", n)
	}
}

func BenchmarkApplyAndAggregate(b *testing.B) {
	base := sampleRecords()
	rows := make([]models.Record, 0, 10000)
	for i := 0; i < 1000; i++ {
		for _, r := range base {
			r.Row = len(rows)
			rows = append(rows, r)
		}
	}
	c := allTime()
	c.Regions = []string{"South", "West"}

	b.ResetTimer()
	for b.Loop() {
		cascade, err := Apply(rows, c)
		if err != nil {
			b.Fatal(err)
		}
		_ = AggregateSum(cascade.View, []models.Field{models.FieldCategory}, models.MeasureSales)
		_ = MonthlyTimeSeries(cascade.View)
	}
}
