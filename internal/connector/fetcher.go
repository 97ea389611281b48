package connector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talkdataco/financial-assistant/internal/metrics"
	"github.com/talkdataco/financial-assistant/internal/query"
)

// Fetcher routes a query analysis to the registered connectors and merges
// the results into a Snapshot. Sources are fetched concurrently; a failing
// source is recorded in the snapshot rather than failing the whole fetch.
type Fetcher struct {
	connectors map[string]Connector

	// now is swappable for tests
	now func() time.Time
}

func NewFetcher(connectors ...Connector) *Fetcher {
	m := make(map[string]Connector, len(connectors))
	for _, c := range connectors {
		m[c.Name()] = c
	}
	return &Fetcher{connectors: m, now: time.Now}
}

func (f *Fetcher) Fetch(ctx context.Context, userQuery string, analysis *query.Analysis) *Snapshot {
	now := f.now()
	primary := ParsePeriod(analysis.TimePeriod, now)

	snapshot := &Snapshot{
		Query:            userQuery,
		Metrics:          analysis.Metrics,
		Dimensions:       analysis.Dimensions,
		TimePeriod:       analysis.TimePeriod,
		ComparisonPeriod: analysis.ComparisonPeriod,
		Range:            primary,
		Sources:          make(map[string]*Result),
		Errors:           make(map[string]string),
	}

	var comparison *Range
	if analysis.ComparisonPeriod != "" {
		r := ComparisonRange(analysis.ComparisonPeriod, primary, now)
		comparison = &r
		snapshot.ComparisonRange = comparison
	}

	filters := analysis.ParsedFilters()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, source := range analysis.RequiredSources() {
		conn, ok := f.connectors[source]
		if !ok {
			snapshot.Errors[source] = "connector not available"
			continue
		}

		wg.Add(1)
		go func(source string, conn Connector) {
			defer wg.Done()

			result, err := f.fetchSource(ctx, conn, analysis, primary, comparison, filters)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("source fetch failed", "source", source, "error", err)
				snapshot.Errors[source] = err.Error()
				return
			}
			snapshot.Sources[source] = result
		}(source, conn)
	}
	wg.Wait()

	return snapshot
}

// fetchSource fetches the primary range and, when requested, the comparison
// range, and folds comparison figures into the primary result.
func (f *Fetcher) fetchSource(ctx context.Context, conn Connector, analysis *query.Analysis, primary Range, comparison *Range, filters map[string]string) (*Result, error) {
	start := time.Now()

	current, err := conn.Fetch(ctx, Request{
		Metrics:    analysis.Metrics,
		Dimensions: analysis.Dimensions,
		Range:      primary,
		Filters:    filters,
	})
	metrics.ObserveConnectorFetch(conn.Name(), err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	if comparison == nil {
		return current, nil
	}

	previous, err := conn.Fetch(ctx, Request{
		Metrics:    analysis.Metrics,
		Dimensions: analysis.Dimensions,
		Range:      *comparison,
		Filters:    filters,
	})
	if err != nil {
		// The primary data is still usable; comparison figures are just absent.
		slog.Warn("comparison fetch failed", "source", conn.Name(), "error", err)
		return current, nil
	}

	for name, value := range current.Metrics {
		prev, ok := previous.Metrics[name]
		if !ok || prev.Err != "" || value.Err != "" {
			continue
		}
		p := prev.Current
		value.Previous = &p
		if p != 0 {
			change := (value.Current - p) / p
			value.Change = &change
		}
		current.Metrics[name] = value
	}

	return current, nil
}
