package rag

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkdataco/financial-assistant/internal/connector"
)

func f64(v float64) *float64 { return &v }

func testSnapshot() *connector.Snapshot {
	return &connector.Snapshot{
		Query:            "How did conversion and revenue change last month?",
		Metrics:          []string{"conversion_rate", "revenue"},
		TimePeriod:       "last_month",
		ComparisonPeriod: "previous_month",
		Range: connector.Range{
			Start: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC),
		},
		Sources: map[string]*connector.Result{
			"google_analytics": {
				Source: "google_analytics",
				Metrics: map[string]connector.MetricValue{
					"conversion_rate": {Current: 0.035, Previous: f64(0.032), Change: f64(0.094)},
					"sessions": {
						Current: 85000,
						Dimensions: map[string]map[string]float64{
							"channel": {"Organic Search": 50000, "Direct": 35000},
						},
					},
				},
			},
			"stripe": {
				Source: "stripe",
				Metrics: map[string]connector.MetricValue{
					"revenue": {Current: 125000, Previous: f64(115000), Change: f64(0.087)},
					"mrr":     {Err: `metric "mrr" not available from stripe`},
				},
			},
		},
	}
}

func TestBuildContext(t *testing.T) {
	text := BuildContext(testSnapshot())

	assert.Contains(t, text, "USER QUERY: How did conversion and revenue change last month?")
	assert.Contains(t, text, "- Time period: last_month")
	assert.Contains(t, text, "- Comparison period: previous_month")
	assert.Contains(t, text, "- Date range: April 1, 2024 to April 30, 2024")

	assert.Contains(t, text, "GOOGLE_ANALYTICS DATA:")
	assert.Contains(t, text, "STRIPE DATA:")

	// percentages, currency amounts, thousands separators
	assert.Contains(t, text, "Current value: 3.50%")
	assert.Contains(t, text, "Current value: $125,000.00")
	assert.Contains(t, text, "Previous value: $115,000.00")
	assert.Contains(t, text, "Current value: 85,000")
	assert.Contains(t, text, "Change: 9.40% increase")
	assert.Contains(t, text, "Change: 8.70% increase")

	// dimension breakdowns
	assert.Contains(t, text, "* By channel:")
	assert.Contains(t, text, "- Organic Search: 50,000")

	// failed metric rendered inline
	assert.Contains(t, text, `- mrr: Error - metric "mrr" not available from stripe`)
}

func TestBuildContextSourceErrors(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Errors = map[string]string{"stripe": "invalid API key"}
	delete(snapshot.Sources, "stripe")

	text := BuildContext(snapshot)
	assert.Contains(t, text, "STRIPE ERROR: invalid API key")
	assert.NotContains(t, text, "STRIPE DATA:")
}

func TestBuildContextNegativeChange(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Sources["stripe"].Metrics["revenue"] = connector.MetricValue{
		Current: 100000, Previous: f64(125000), Change: f64(-0.2),
	}

	text := BuildContext(snapshot)
	assert.Contains(t, text, "Change: 20.00% decrease")
}

func TestBuildDocuments(t *testing.T) {
	docs := BuildDocuments(testSnapshot())

	// one summary document plus one per non-erroring metric
	require.Len(t, docs, 4)
	assert.Equal(t, "summary", docs[0].Metadata["source"])

	var revenueDoc *Document
	for i := range docs {
		if docs[i].Metadata["metric"] == "revenue" {
			revenueDoc = &docs[i]
		}
	}
	require.NotNil(t, revenueDoc)
	assert.Equal(t, "stripe", revenueDoc.Metadata["source"])
	assert.Contains(t, revenueDoc.Content, "Revenue from stripe:")
	assert.Contains(t, revenueDoc.Content, "increased by 8.70%")
}

func TestContextSummary(t *testing.T) {
	summary := ContextSummary(testSnapshot())
	assert.Contains(t, summary, "google_analytics, stripe")
	for _, metric := range []string{"conversion_rate", "sessions", "revenue"} {
		assert.True(t, strings.Contains(summary, metric), "summary should mention %s", metric)
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "3.50%", formatValue("conversion_rate", 0.035))
	assert.Equal(t, "$1,234.56", formatValue("revenue", 1234.56))
	assert.Equal(t, "85,000", formatValue("sessions", 85000))
	assert.Equal(t, "12.34", formatValue("sessions", 12.34))
	// a rate above 1 is not treated as a fraction
	assert.Equal(t, "150", formatValue("bounce_rate", 150))
}

func TestWithCommas(t *testing.T) {
	assert.Equal(t, "999", withCommas("999"))
	assert.Equal(t, "1,000", withCommas("1000"))
	assert.Equal(t, "1,234,567.89", withCommas("1234567.89"))
}
