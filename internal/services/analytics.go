package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sales-explorer/internal/loader"
	"sales-explorer/internal/models"
	"sales-explorer/internal/observability"
	"sales-explorer/internal/pipeline"
	"sales-explorer/internal/summary"
)

var ErrNoDataset = errors.New("no dataset loaded")

// Hierarchy levels of the treemap, outermost first.
var TreemapPath = []models.Field{models.FieldRegion, models.FieldCategory, models.FieldSubCategory}

type Options struct {
	PreviewRows  int
	ScatterLimit int
}

// Snapshot is everything the dashboard shows for one set of criteria.
type Snapshot struct {
	Criteria      models.Criteria       `json:"criteria"`
	Options       models.FilterOptions  `json:"options"`
	Totals        models.Totals         `json:"totals"`
	CategorySales models.AggregateTable `json:"category_sales"`
	RegionSales   models.AggregateTable `json:"region_sales"`
	SegmentSales  models.AggregateTable `json:"segment_sales"`
	Monthly       models.MonthlySeries  `json:"monthly_sales"`
	Pivot         models.PivotTable     `json:"pivot"`
	Treemap       []models.TreeNode     `json:"treemap"`
	Scatter       []models.ScatterPoint `json:"scatter"`
	Summary       models.StringTable    `json:"summary"`

	Preview models.PreviewTable `json:"-"`
	View    []models.Record     `json:"-"`
	Header  []string            `json:"-"`
	Skipped int                 `json:"skipped"`
	Dataset string              `json:"dataset"`
}

// Analytics holds one session's dataset and derives every dashboard view
// from it. The dataset is swapped atomically on upload and never mutated.
type Analytics struct {
	mu      sync.RWMutex
	dataset *models.Dataset
	loader  *loader.Loader
	opts    Options
	logger  *slog.Logger

	snapshots    atomic.Int64
	lastDuration atomic.Int64
}

func NewAnalytics(ld *loader.Loader, opts Options) *Analytics {
	if ld == nil {
		ld = loader.New(0)
	}
	return &Analytics{
		loader: ld,
		opts:   opts,
		logger: slog.Default(),
	}
}

func (a *Analytics) WithLogger(logger *slog.Logger) *Analytics {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Load parses r and, only if it loads cleanly, replaces the current dataset.
func (a *Analytics) Load(ctx context.Context, name string, r io.Reader) error {
	ctx, span := observability.StartSpan(ctx, "dataset.load")
	defer span.Finish()
	span.SetTag("file", name)

	start := time.Now()
	ds, err := a.loader.Load(ctx, name, r)
	if err != nil {
		span.SetError(err)
		return err
	}

	a.SetDataset(ds)
	a.logLoaded(ds, time.Since(start))
	return nil
}

func (a *Analytics) LoadFromFile(ctx context.Context, path string) error {
	ctx, span := observability.StartSpan(ctx, "dataset.load_file")
	defer span.Finish()
	span.SetTag("path", path)

	start := time.Now()
	ds, err := a.loader.LoadFile(ctx, path)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("load %s: %w", path, err)
	}

	a.SetDataset(ds)
	a.logLoaded(ds, time.Since(start))
	return nil
}

func (a *Analytics) logLoaded(ds *models.Dataset, duration time.Duration) {
	a.logger.Info("dataset loaded",
		"file", ds.Name,
		"records", ds.Len(),
		"skipped", ds.Skipped,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(ds.Len())/max(duration.Seconds(), 1e-9)))
	if ds.Skipped > 0 {
		a.logger.Warn("skipped malformed rows", "file", ds.Name, "skipped", ds.Skipped)
	}
}

// SetData installs records directly. Records without raw cells get their
// typed fields as the exported columns.
func (a *Analytics) SetData(records []models.Record) {
	rows := make([]models.Record, len(records))
	copy(rows, records)
	for i := range rows {
		rows[i].Row = i
		if rows[i].Raw == nil {
			rows[i].Raw = rows[i].Cells()
		}
	}

	a.SetDataset(&models.Dataset{
		Name:     "records",
		Header:   models.PreviewColumns,
		Records:  rows,
		LoadedAt: time.Now(),
	})
}

// SetDataset installs ds, which may be shared with other sessions.
func (a *Analytics) SetDataset(ds *models.Dataset) {
	a.mu.Lock()
	a.dataset = ds
	a.mu.Unlock()
}

func (a *Analytics) Dataset() *models.Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset
}

// Clear drops the dataset so a new file can be uploaded.
func (a *Analytics) Clear() {
	a.SetDataset(nil)
}

// DefaultCriteria spans the whole dataset with no categorical constraint.
func (a *Analytics) DefaultCriteria() (models.Criteria, error) {
	return defaultCriteria(a.Dataset())
}

func defaultCriteria(ds *models.Dataset) (models.Criteria, error) {
	minDate, maxDate, ok := ds.DateBounds()
	if !ok {
		return models.Criteria{}, ErrNoDataset
	}
	return models.Criteria{Start: minDate, End: maxDate}, nil
}

// View runs the filter cascade for c and returns it together with the
// normalised criteria.
func (a *Analytics) View(ctx context.Context, c models.Criteria) (*pipeline.Cascade, models.Criteria, error) {
	return a.view(ctx, a.Dataset(), c)
}

// view works on one dataset read so that a concurrent upload cannot mix
// rows of one file with the header of another.
func (a *Analytics) view(ctx context.Context, ds *models.Dataset, c models.Criteria) (*pipeline.Cascade, models.Criteria, error) {
	_, span := observability.StartSpan(ctx, "pipeline.filter")
	defer span.Finish()

	bounds, err := defaultCriteria(ds)
	if err != nil {
		span.SetError(err)
		return nil, c, err
	}
	if c.Start.IsZero() {
		c.Start = bounds.Start
	}
	if c.End.IsZero() {
		c.End = bounds.End
	}

	cascade, eff, err := pipeline.Normalize(ds.Records, c)
	if err != nil {
		span.SetError(err)
		return nil, eff, err
	}

	cascade.Options.MinDate = bounds.Start
	cascade.Options.MaxDate = bounds.End
	span.SetTag("rows", fmt.Sprint(len(cascade.View)))
	return cascade, eff, nil
}

// Snapshot derives every dashboard table for c in one pass.
func (a *Analytics) Snapshot(ctx context.Context, c models.Criteria) (*Snapshot, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.snapshot")
	defer span.Finish()
	start := time.Now()

	ds := a.Dataset()
	cascade, eff, err := a.view(ctx, ds, c)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	view := cascade.View

	stats, err := summary.Describe(view)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("summary: %w", err)
	}

	snap := &Snapshot{
		Criteria:      eff,
		Options:       cascade.Options,
		Totals:        pipeline.Summarize(view),
		CategorySales: pipeline.AggregateSum(view, []models.Field{models.FieldCategory}, models.MeasureSales),
		RegionSales:   pipeline.AggregateSum(view, []models.Field{models.FieldRegion}, models.MeasureSales),
		SegmentSales:  pipeline.AggregateSum(view, []models.Field{models.FieldSegment}, models.MeasureSales),
		Monthly:       pipeline.MonthlyTimeSeries(view),
		Pivot:         pipeline.Pivot(view, models.FieldSubCategory, models.FieldMonth, models.MeasureSales),
		Treemap:       pipeline.Hierarchy(view, TreemapPath, models.MeasureSales),
		Scatter:       pipeline.Scatter(view, a.opts.ScatterLimit),
		Summary:       stats,
		Preview:       pipeline.Preview(view, a.opts.PreviewRows),
		View:          view,
		Header:        ds.Header,
		Skipped:       ds.Skipped,
		Dataset:       ds.Name,
	}

	elapsed := time.Since(start)
	a.snapshots.Add(1)
	a.lastDuration.Store(int64(elapsed))
	a.logger.DebugContext(ctx, "snapshot computed",
		"rows", len(view),
		"of", ds.Len(),
		"duration", elapsed)
	return snap, nil
}

// Stats reports the loaded dataset for monitoring.
func (a *Analytics) Stats() map[string]any {
	ds := a.Dataset()
	stats := map[string]any{
		"loaded":             ds.Len() > 0,
		"snapshots":          a.snapshots.Load(),
		"last_snapshot_time": time.Duration(a.lastDuration.Load()).String(),
	}
	if ds.Len() == 0 {
		return stats
	}

	minDate, maxDate, _ := ds.DateBounds()
	stats["file"] = ds.Name
	stats["record_count"] = ds.Len()
	stats["skipped"] = ds.Skipped
	stats["loaded_at"] = ds.LoadedAt
	stats["min_date"] = minDate.Format(time.DateOnly)
	stats["max_date"] = maxDate.Format(time.DateOnly)
	return stats
}
