// Package loader turns an uploaded CSV or spreadsheet into a Dataset.
package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"sales-explorer/internal/models"
)

const (
	defaultWorkers   = 4
	defaultChunkSize = 2048
)

// Kind classifies why a file could not be loaded.
type Kind int

const (
	KindUnsupportedFormat Kind = iota + 1
	KindMissingColumns
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindMissingColumns:
		return "missing_columns"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned for every load failure. Message is safe to show to
// the user.
type Error struct {
	Kind    Kind
	Message string
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func malformed(err error, format string, args ...any) *Error {
	return &Error{Kind: KindMalformed, Message: fmt.Sprintf(format, args...), Err: err}
}

// Required columns, in the order they are reported when missing.
var requiredColumns = []string{"Order Date", "Region", "State", "City", "Category",
	"Sub-Category", "Segment", "Sales", "Profit", "Quantity"}

// rawTable is what every format reader produces.
type rawTable struct {
	header  []string
	rows    [][]string
	skipped int
}

type Loader struct {
	workers   int
	chunkSize int
}

func New(workers int) *Loader {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Loader{workers: workers, chunkSize: defaultChunkSize}
}

// Extensions lists the file types Load accepts.
var Extensions = []string{".csv", ".txt", ".xlsx", ".xls"}

// Supported reports whether name has an extension Load can dispatch on.
func Supported(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Unsupported is the error Load returns for a name Supported rejects.
func Unsupported(name string) *Error {
	return &Error{
		Kind: KindUnsupportedFormat,
		Message: fmt.Sprintf("unsupported file type %q: upload a %s file",
			strings.ToLower(filepath.Ext(name)), strings.Join(Extensions, ", ")),
	}
}

// LoadFile opens path and loads it like an upload named after the file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return l.Load(ctx, filepath.Base(path), f)
}

// Load parses r according to the extension of name.
func (l *Loader) Load(ctx context.Context, name string, r io.Reader) (*models.Dataset, error) {
	var (
		table *rawTable
		err   error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		table, err = readCSV(r)
	case ".xlsx":
		table, err = readXLSX(r)
	case ".xls":
		table, err = readXLS(r)
	default:
		return nil, Unsupported(name)
	}
	if err != nil {
		return nil, err
	}

	return l.build(ctx, name, table)
}

type columnIndex struct {
	orderDate, region, state, city, category, subCategory, segment, sales, profit, quantity int
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

func mapColumns(header []string) (columnIndex, []string) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := positions[normalizeHeader(name)]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	idx := columnIndex{
		orderDate:   lookup("Order Date"),
		region:      lookup("Region"),
		state:       lookup("State"),
		city:        lookup("City"),
		category:    lookup("Category"),
		subCategory: lookup("Sub-Category"),
		segment:     lookup("Segment"),
		sales:       lookup("Sales"),
		profit:      lookup("Profit"),
		quantity:    lookup("Quantity"),
	}
	return idx, missing
}

type parsedRow struct {
	rec models.Record
	ok  bool
}

func (l *Loader) build(ctx context.Context, name string, table *rawTable) (*models.Dataset, error) {
	if len(table.header) == 0 {
		return nil, malformed(nil, "the file is empty")
	}

	idx, missing := mapColumns(table.header)
	if len(missing) > 0 {
		return nil, &Error{
			Kind:    KindMissingColumns,
			Message: "missing required columns: " + strings.Join(missing, ", "),
			Missing: missing,
		}
	}

	parsed := make([]parsedRow, len(table.rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for start := 0; start < len(table.rows); start += l.chunkSize {
		end := min(start+l.chunkSize, len(table.rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				rec, err := parseRecord(table.rows[i], idx)
				if err != nil {
					continue
				}
				parsed[i] = parsedRow{rec: rec, ok: true}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}

	ds := &models.Dataset{
		Name:     name,
		Header:   table.header,
		Records:  make([]models.Record, 0, len(parsed)),
		Skipped:  table.skipped,
		LoadedAt: time.Now(),
	}
	for _, p := range parsed {
		if !p.ok {
			ds.Skipped++
			continue
		}
		p.rec.Row = len(ds.Records)
		ds.Records = append(ds.Records, p.rec)
	}

	if len(ds.Records) == 0 {
		return nil, malformed(nil, "no readable rows (%d skipped)", ds.Skipped)
	}
	return ds, nil
}

func parseRecord(row []string, idx columnIndex) (models.Record, error) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	orderDate, err := parseDate(cell(idx.orderDate))
	if err != nil {
		return models.Record{}, err
	}
	// Spreadsheet dates arrive as serial day numbers; keep Raw readable.
	if _, err := strconv.ParseFloat(cell(idx.orderDate), 64); err == nil {
		row[idx.orderDate] = formatDate(orderDate)
	}
	sales, err := parseDecimal(cell(idx.sales))
	if err != nil {
		return models.Record{}, fmt.Errorf("sales: %w", err)
	}
	profit, err := parseDecimal(cell(idx.profit))
	if err != nil {
		return models.Record{}, fmt.Errorf("profit: %w", err)
	}
	quantity, err := parseQuantity(cell(idx.quantity))
	if err != nil {
		return models.Record{}, fmt.Errorf("quantity: %w", err)
	}

	return models.Record{
		OrderDate:   orderDate,
		Region:      cell(idx.region),
		State:       cell(idx.state),
		City:        cell(idx.city),
		Category:    cell(idx.category),
		SubCategory: cell(idx.subCategory),
		Segment:     cell(idx.segment),
		Sales:       sales,
		Profit:      profit,
		Quantity:    quantity,
		Raw:         row,
	}, nil
}

var dateLayouts = []string{
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/06",
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006/01/02",
	"1-2-2006",
	"01-02-06",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseDate accepts the month-first layouts found in retail exports and
// Excel serial day numbers.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func formatDate(t time.Time) string {
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	return decimal.NewFromString(s)
}

func parseQuantity(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("quantity %q is not a whole number", s)
	}
	return int(d.IntPart()), nil
}
