// Package pipeline narrows a dataset by the dashboard's filter criteria and
// computes the grouped tables the charts are drawn from. Every function is
// a pure transformation of its inputs.
package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"sales-explorer/internal/models"
)

var ErrInvalidRange = errors.New("start date is after end date")

// Stage narrows rows. Stages compose left to right.
type Stage func(rows []models.Record) []models.Record

// FilterByDateRange keeps records whose order date falls on a calendar day
// in [start, end].
func FilterByDateRange(rows []models.Record, start, end time.Time) ([]models.Record, error) {
	from, to := models.Day(start), models.Day(end)
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	out := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		day := models.Day(r.OrderDate)
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FilterByCategoricalSet keeps records whose field value is in allowed.
// An empty allowed set returns rows as is.
func FilterByCategoricalSet(rows []models.Record, field models.Field, allowed []string) []models.Record {
	if len(allowed) == 0 {
		return rows
	}

	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}

	out := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		if _, ok := set[field.Value(r)]; ok {
			out = append(out, r)
		}
	}
	return out
}

// By returns the stage form of FilterByCategoricalSet.
func By(field models.Field, allowed []string) Stage {
	return func(rows []models.Record) []models.Record {
		return FilterByCategoricalSet(rows, field, allowed)
	}
}

// Compose runs stages in order, each on the previous stage's output.
func Compose(stages ...Stage) Stage {
	return func(rows []models.Record) []models.Record {
		for _, s := range stages {
			rows = s(rows)
		}
		return rows
	}
}

// Cascade holds every stage output of Apply together with the values the
// user can pick at each level.
type Cascade struct {
	Dated    []models.Record
	ByRegion []models.Record
	ByState  []models.Record
	View     []models.Record
	Options  models.FilterOptions
}

// Apply narrows rows by date, then region, then state, then city. Options
// for a level come from the output of the level above it.
func Apply(rows []models.Record, c models.Criteria) (*Cascade, error) {
	dated, err := FilterByDateRange(rows, c.Start, c.End)
	if err != nil {
		return nil, err
	}

	out := &Cascade{Dated: dated}
	out.View = Compose(
		offer(models.FieldRegion, &out.Options.Regions),
		By(models.FieldRegion, c.Regions),
		keep(&out.ByRegion),
		offer(models.FieldState, &out.Options.States),
		By(models.FieldState, c.States),
		keep(&out.ByState),
		offer(models.FieldCity, &out.Options.Cities),
		By(models.FieldCity, c.Cities),
	)(dated)
	return out, nil
}

// offer records the values of field present in the rows reaching it.
func offer(field models.Field, into *[]string) Stage {
	return func(rows []models.Record) []models.Record {
		*into = Distinct(rows, field)
		return rows
	}
}

func keep(into *[]models.Record) Stage {
	return func(rows []models.Record) []models.Record {
		*into = rows
		return rows
	}
}

// Distinct lists the values of field in order of first appearance.
func Distinct(rows []models.Record, field models.Field) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range rows {
		v := field.Value(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Prune drops selected values that are no longer offered. The dashboard
// applies it level by level so a stale state or city selection does not
// silently empty the view after an upstream change.
func Prune(selected, offered []string) []string {
	if len(selected) == 0 {
		return nil
	}
	out := make([]string, 0, len(selected))
	for _, v := range selected {
		if slices.Contains(offered, v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Normalize applies the cascade while pruning each level's selection
// against the options its upstream level offers. It returns the cascade
// and the criteria that actually produced it.
func Normalize(rows []models.Record, c models.Criteria) (*Cascade, models.Criteria, error) {
	dated, err := FilterByDateRange(rows, c.Start, c.End)
	if err != nil {
		return nil, c, err
	}

	eff := models.Criteria{Start: models.Day(c.Start), End: models.Day(c.End)}
	eff.Regions = Prune(c.Regions, Distinct(dated, models.FieldRegion))
	byRegion := FilterByCategoricalSet(dated, models.FieldRegion, eff.Regions)
	eff.States = Prune(c.States, Distinct(byRegion, models.FieldState))
	byState := FilterByCategoricalSet(byRegion, models.FieldState, eff.States)
	eff.Cities = Prune(c.Cities, Distinct(byState, models.FieldCity))

	cascade, err := Apply(rows, eff)
	if err != nil {
		return nil, eff, err
	}
	return cascade, eff, nil
}
