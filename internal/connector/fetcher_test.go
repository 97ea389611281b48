package connector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkdataco/financial-assistant/internal/query"
)

// fakeConnector returns canned per-range metric values and records requests.
type fakeConnector struct {
	name    string
	byStart map[string]map[string]float64 // range start date -> metric -> value
	err     error

	mu       sync.Mutex
	requests []Request
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Fetch(ctx context.Context, req Request) (*Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	values := f.byStart[req.Range.Start.Format("2006-01-02")]
	result := &Result{Source: f.name, Range: req.Range, Metrics: make(map[string]MetricValue)}
	for _, m := range req.Metrics {
		result.Metrics[m] = MetricValue{Current: values[m]}
	}
	return result, nil
}

func newTestFetcher(connectors ...Connector) *Fetcher {
	f := NewFetcher(connectors...)
	f.now = func() time.Time { return testNow }
	return f
}

func TestFetchRoutesToRequiredSources(t *testing.T) {
	ga := &fakeConnector{name: "google_analytics", byStart: map[string]map[string]float64{
		"2024-04-01": {"sessions": 85000},
	}}
	st := &fakeConnector{name: "stripe", byStart: map[string]map[string]float64{
		"2024-04-01": {"revenue": 125000},
	}}
	f := newTestFetcher(ga, st)

	snapshot := f.Fetch(context.Background(), "how did we do last month?", &query.Analysis{
		DataSources: []string{"google_analytics", "stripe"},
		Metrics:     []string{"sessions", "revenue"},
		TimePeriod:  "last_month",
	})

	require.Len(t, snapshot.Sources, 2)
	assert.Empty(t, snapshot.Errors)
	assert.Equal(t, 85000.0, snapshot.Sources["google_analytics"].Metrics["sessions"].Current)
	assert.Equal(t, 125000.0, snapshot.Sources["stripe"].Metrics["revenue"].Current)
	assert.Equal(t, "2024-04-01 to 2024-04-30", snapshot.Range.String())
	assert.False(t, snapshot.AllFailed())
}

func TestFetchComparisonFoldsChange(t *testing.T) {
	st := &fakeConnector{name: "stripe", byStart: map[string]map[string]float64{
		"2024-04-01": {"revenue": 125000},
		"2024-03-01": {"revenue": 100000},
	}}
	f := newTestFetcher(st)

	snapshot := f.Fetch(context.Background(), "revenue vs last month", &query.Analysis{
		DataSources:      []string{"stripe"},
		Metrics:          []string{"revenue"},
		TimePeriod:       "last_month",
		ComparisonPeriod: "previous_month",
	})

	require.NotNil(t, snapshot.ComparisonRange)
	value, ok := snapshot.Metric("stripe", "revenue")
	require.True(t, ok)
	require.NotNil(t, value.Previous)
	require.NotNil(t, value.Change)
	assert.Equal(t, 100000.0, *value.Previous)
	assert.InDelta(t, 0.25, *value.Change, 1e-9)

	// one fetch per range
	assert.Len(t, st.requests, 2)
}

func TestFetchUnknownSource(t *testing.T) {
	f := newTestFetcher()

	snapshot := f.Fetch(context.Background(), "shopify orders", &query.Analysis{
		DataSources: []string{"shopify"},
		Metrics:     []string{"orders"},
		TimePeriod:  "last_week",
	})

	assert.Empty(t, snapshot.Sources)
	assert.Equal(t, "connector not available", snapshot.Errors["shopify"])
	assert.True(t, snapshot.AllFailed())
}

func TestFetchPartialFailure(t *testing.T) {
	ga := &fakeConnector{name: "google_analytics", err: errors.New("quota exceeded")}
	st := &fakeConnector{name: "stripe", byStart: map[string]map[string]float64{
		"2024-04-15": {"revenue": 42000},
	}}
	f := newTestFetcher(ga, st)

	snapshot := f.Fetch(context.Background(), "traffic and revenue", &query.Analysis{
		DataSources: []string{"google_analytics", "stripe"},
		Metrics:     []string{"sessions", "revenue"},
		TimePeriod:  "last_30_days",
	})

	assert.Len(t, snapshot.Sources, 1)
	assert.Equal(t, "quota exceeded", snapshot.Errors["google_analytics"])
	assert.False(t, snapshot.AllFailed())
}
