// Package connector defines the data source abstraction and the fetcher that
// routes a query analysis to the configured sources.
package connector

import (
	"context"
	"time"
)

const dateFormat = "2006-01-02"

// Range is an inclusive date range.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r Range) String() string {
	return r.Start.Format(dateFormat) + " to " + r.End.Format(dateFormat)
}

// Days returns the number of calendar days the range spans.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Request describes one fetch against a data source.
type Request struct {
	Metrics    []string          `json:"metrics"`
	Dimensions []string          `json:"dimensions,omitempty"`
	Range      Range             `json:"range"`
	Filters    map[string]string `json:"filters,omitempty"`
}

// MetricValue holds a single metric's figures for a range. Previous and
// Change are filled in by the fetcher when a comparison range was requested.
type MetricValue struct {
	Current    float64                       `json:"current"`
	Previous   *float64                      `json:"previous,omitempty"`
	Change     *float64                      `json:"change,omitempty"`
	Dimensions map[string]map[string]float64 `json:"dimensions,omitempty"`
	Err        string                        `json:"error,omitempty"`
}

// Result is everything a connector returned for one request.
type Result struct {
	Source  string                 `json:"source"`
	Range   Range                  `json:"range"`
	Metrics map[string]MetricValue `json:"metrics"`
}

// Connector is a queryable data source.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// Snapshot is the combined outcome of fetching every source an analysis
// requires. Per-source failures land in Errors instead of failing the fetch.
type Snapshot struct {
	Query            string             `json:"query"`
	Metrics          []string           `json:"metrics"`
	Dimensions       []string           `json:"dimensions,omitempty"`
	TimePeriod       string             `json:"time_period"`
	ComparisonPeriod string             `json:"comparison_period,omitempty"`
	Range            Range              `json:"range"`
	ComparisonRange  *Range             `json:"comparison_range,omitempty"`
	Sources          map[string]*Result `json:"sources"`
	Errors           map[string]string  `json:"errors,omitempty"`
}

// Metric looks up a metric value by source and name.
func (s *Snapshot) Metric(source, metric string) (MetricValue, bool) {
	result, ok := s.Sources[source]
	if !ok {
		return MetricValue{}, false
	}
	value, ok := result.Metrics[metric]
	return value, ok
}

// AllFailed reports whether no source returned any data.
func (s *Snapshot) AllFailed() bool {
	return len(s.Sources) == 0 && len(s.Errors) > 0
}
