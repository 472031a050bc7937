package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sales-explorer/internal/errors"
	"sales-explorer/internal/models"
)

const dateLayout = time.DateOnly

// filterSignals are the Datastar signals bound to the filter form.
type filterSignals struct {
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
	Regions   []string `json:"regions"`
	States    []string `json:"states"`
	Cities    []string `json:"cities"`
}

func signalsFor(c models.Criteria) filterSignals {
	return filterSignals{
		StartDate: formatDate(c.Start),
		EndDate:   formatDate(c.End),
		Regions:   nonNil(c.Regions),
		States:    nonNil(c.States),
		Cities:    nonNil(c.Cities),
	}
}

func (s filterSignals) criteria() (models.Criteria, error) {
	start, err := parseDate("startDate", s.StartDate)
	if err != nil {
		return models.Criteria{}, err
	}
	end, err := parseDate("endDate", s.EndDate)
	if err != nil {
		return models.Criteria{}, err
	}
	return models.Criteria{
		Start:   start,
		End:     end,
		Regions: clean(s.Regions),
		States:  clean(s.States),
		Cities:  clean(s.Cities),
	}, nil
}

// criteriaFromQuery reads start, end and repeated region, state and city
// parameters. Missing dates are left zero and default to the dataset bounds.
func criteriaFromQuery(r *http.Request) (models.Criteria, error) {
	q := r.URL.Query()
	return filterSignals{
		StartDate: q.Get("start"),
		EndDate:   q.Get("end"),
		Regions:   q["region"],
		States:    q["state"],
		Cities:    q["city"],
	}.criteria()
}

// criteriaQuery encodes c for links back into the API.
func criteriaQuery(c models.Criteria) url.Values {
	q := url.Values{}
	if !c.Start.IsZero() {
		q.Set("start", formatDate(c.Start))
	}
	if !c.End.IsZero() {
		q.Set("end", formatDate(c.End))
	}
	for _, v := range c.Regions {
		q.Add("region", v)
	}
	for _, v := range c.States {
		q.Add("state", v)
	}
	for _, v := range c.Cities {
		q.Add("city", v)
	}
	return q
}

func parseDate(name, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.BadRequestWrap(err, fmt.Sprintf("%s must be a date like 2016-11-08, got %q", name, s))
	}
	return t, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func clean(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
