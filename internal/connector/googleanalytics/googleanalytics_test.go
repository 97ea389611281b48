package googleanalytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkdataco/financial-assistant/internal/config"
	"github.com/talkdataco/financial-assistant/internal/connector"
)

func testRange() connector.Range {
	return connector.Range{
		Start: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC),
	}
}

func newTestConnector(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.GoogleAnalyticsConfig{
		PropertyID: "123456",
		Endpoint:   server.URL,
	}
	return NewWithClient(cfg, server.Client())
}

func TestFetchTotals(t *testing.T) {
	var got runReportRequest
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/properties/123456:runReport", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]any{
			"metricHeaders": []map[string]string{
				{"name": "sessions"},
				{"name": "sessionKeyEventRate"},
			},
			"rows": []map[string]any{
				{"metricValues": []map[string]string{{"value": "85000"}, {"value": "0.035"}}},
			},
		})
	})

	result, err := c.Fetch(context.Background(), connector.Request{
		Metrics: []string{"sessions", "conversion_rate"},
		Range:   testRange(),
	})
	require.NoError(t, err)

	assert.Equal(t, "google_analytics", result.Source)
	assert.Equal(t, 85000.0, result.Metrics["sessions"].Current)
	assert.InDelta(t, 0.035, result.Metrics["conversion_rate"].Current, 1e-9)

	// the request carries GA4 metric names and the date range
	require.Len(t, got.DateRanges, 1)
	assert.Equal(t, "2024-04-01", got.DateRanges[0].StartDate)
	assert.Equal(t, "2024-04-30", got.DateRanges[0].EndDate)
	require.Len(t, got.Metrics, 2)
	assert.Equal(t, "sessions", got.Metrics[0].Name)
	assert.Equal(t, "sessionKeyEventRate", got.Metrics[1].Name)
}

func TestFetchUnknownMetric(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{
				{"metricValues": []map[string]string{{"value": "85000"}}},
			},
		})
	})

	result, err := c.Fetch(context.Background(), connector.Request{
		Metrics: []string{"sessions", "mrr"},
		Range:   testRange(),
	})
	require.NoError(t, err)

	assert.Equal(t, 85000.0, result.Metrics["sessions"].Current)
	assert.Contains(t, result.Metrics["mrr"].Err, "not available")
}

func TestFetchOnlyUnknownMetrics(t *testing.T) {
	called := false
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	result, err := c.Fetch(context.Background(), connector.Request{
		Metrics: []string{"mrr"},
		Range:   testRange(),
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.NotEmpty(t, result.Metrics["mrr"].Err)
}

func TestFetchDimensionBreakdown(t *testing.T) {
	calls := 0
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req runReportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if len(req.Dimensions) == 0 {
			json.NewEncoder(w).Encode(map[string]any{
				"rows": []map[string]any{
					{"metricValues": []map[string]string{{"value": "85000"}}},
				},
			})
			return
		}

		assert.Equal(t, "sessionDefaultChannelGroup", req.Dimensions[0].Name)
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{
				{
					"dimensionValues": []map[string]string{{"value": "Organic Search"}},
					"metricValues":    []map[string]string{{"value": "50000"}},
				},
				{
					"dimensionValues": []map[string]string{{"value": "Direct"}},
					"metricValues":    []map[string]string{{"value": "35000"}},
				},
			},
		})
	})

	result, err := c.Fetch(context.Background(), connector.Request{
		Metrics:    []string{"sessions"},
		Dimensions: []string{"channel"},
		Range:      testRange(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	sessions := result.Metrics["sessions"]
	assert.Equal(t, 85000.0, sessions.Current)
	require.Contains(t, sessions.Dimensions, "channel")
	assert.Equal(t, 50000.0, sessions.Dimensions["channel"]["Organic Search"])
	assert.Equal(t, 35000.0, sessions.Dimensions["channel"]["Direct"])
}

func TestFetchServerError(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "insufficient permissions"}}`, http.StatusForbidden)
	})

	_, err := c.Fetch(context.Background(), connector.Request{
		Metrics: []string{"sessions"},
		Range:   testRange(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFetchEmptyReport(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"rows": []any{}})
	})

	result, err := c.Fetch(context.Background(), connector.Request{
		Metrics: []string{"sessions"},
		Range:   testRange(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Metrics["sessions"].Current)
	assert.Empty(t, result.Metrics["sessions"].Err)
}
