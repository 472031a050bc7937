// Package summary computes descriptive statistics of a filtered view.
package summary

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"

	"sales-explorer/internal/models"
)

const statColumn = "column"

// Describe returns mean, median, stddev, min, quartiles and max of Sales,
// Profit and Quantity. An empty view yields a header-only table.
func Describe(view []models.Record) (models.StringTable, error) {
	header := []string{"statistic", string(models.MeasureSales), string(models.MeasureProfit), string(models.MeasureQuantity)}
	if len(view) == 0 {
		return models.StringTable{Columns: header, Values: [][]string{}}, nil
	}

	sales := make([]float64, len(view))
	profit := make([]float64, len(view))
	quantity := make([]int, len(view))
	for i, r := range view {
		sales[i] = r.Sales.InexactFloat64()
		profit[i] = r.Profit.InexactFloat64()
		quantity[i] = r.Quantity
	}

	df := dataframe.New(
		series.New(sales, series.Float, string(models.MeasureSales)),
		series.New(profit, series.Float, string(models.MeasureProfit)),
		series.New(quantity, series.Int, string(models.MeasureQuantity)),
	)
	if df.Err != nil {
		return models.StringTable{}, fmt.Errorf("build dataframe: %w", df.Err)
	}

	described := df.Describe()
	if described.Err != nil {
		return models.StringTable{}, fmt.Errorf("describe: %w", described.Err)
	}

	records := described.Records()
	if len(records) == 0 || len(records[0]) == 0 || records[0][0] != statColumn {
		return models.StringTable{}, fmt.Errorf("describe: unexpected layout %v", records)
	}

	values := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(rec))
		row[0] = rec[0]
		for i := 1; i < len(rec); i++ {
			row[i] = tidy(rec[i])
		}
		values = append(values, row)
	}
	return models.StringTable{Columns: header, Values: values}, nil
}

// tidy rounds a formatted float to four places and drops trailing zeros.
func tidy(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.Round(4).String()
}
