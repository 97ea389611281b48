package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkdataco/financial-assistant/internal/connector"
)

func f64(v float64) *float64 { return &v }

func testSnapshot() *connector.Snapshot {
	return &connector.Snapshot{
		Sources: map[string]*connector.Result{
			"google_analytics": {
				Source: "google_analytics",
				Metrics: map[string]connector.MetricValue{
					"conversion_rate": {Current: 0.035, Previous: f64(0.032), Change: f64(0.094)},
					"sessions":        {Current: 85000, Previous: f64(80000), Change: f64(0.0625)},
				},
			},
			"stripe": {
				Source: "stripe",
				Metrics: map[string]connector.MetricValue{
					"revenue":             {Current: 125000, Previous: f64(115000), Change: f64(0.087)},
					"average_order_value": {Current: 85.50, Previous: f64(82.75), Change: f64(0.033)},
				},
			},
		},
	}
}

func TestValue(t *testing.T) {
	c := New(testSnapshot())

	assert.Equal(t, 0.035, c.Value("google_analytics", "conversion_rate", "current"))
	assert.Equal(t, 115000.0, c.Value("stripe", "revenue", "previous"))

	// shorthand source names
	assert.Equal(t, 85000.0, c.Value("GA", "sessions", "current"))
	assert.Equal(t, 125000.0, c.Value("S", "revenue", "current"))

	// missing paths resolve to zero
	assert.Equal(t, 0.0, c.Value("nonexistent", "metric", "field"))
	assert.Equal(t, 0.0, c.Value("stripe", "revenue", "bogus_field"))
}

func TestEvaluateSimple(t *testing.T) {
	c := New(testSnapshot())

	for expr, want := range map[string]float64{
		"2 + 3":     5,
		"10 * 5":    50,
		"100 / 4":   25,
		"10 - 2.5":  7.5,
		"-5 + 10":   5,
		"2 ^ 3":     8,
		"10 % 3":    1,
		"(2 + 3)*4": 20,
	} {
		got, err := c.Evaluate(expr)
		require.NoError(t, err, "expression %q", expr)
		assert.InDelta(t, want, got, 1e-9, "expression %q", expr)
	}
}

func TestEvaluateWithReferences(t *testing.T) {
	c := New(testSnapshot())

	got, err := c.Evaluate("GA:conversion_rate:current * 100")
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got, 0.01)

	got, err = c.Evaluate("stripe:revenue:current / stripe:revenue:previous - 1")
	require.NoError(t, err)
	assert.InDelta(t, 0.087, got, 0.001)
}

func TestEvaluateWithFunctions(t *testing.T) {
	c := New(testSnapshot())

	got, err := c.Evaluate("percentage_change(GA:sessions:current, GA:sessions:previous)")
	require.NoError(t, err)
	assert.InDelta(t, 6.25, got, 0.01)

	got, err = c.Evaluate("avg([GA:sessions:current, 90000])")
	require.NoError(t, err)
	assert.InDelta(t, 87500, got, 0.1)

	got, err = c.Evaluate("growth_rate(110, 100)")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got, 1e-9)

	got, err = c.Evaluate("percent(GA:conversion_rate:change)")
	require.NoError(t, err)
	assert.InDelta(t, 9.4, got, 0.01)

	got, err = c.Evaluate("max(1, 2, 3) + min([4, 5])")
	require.NoError(t, err)
	assert.InDelta(t, 7, got, 1e-9)
}

func TestEvaluateErrors(t *testing.T) {
	c := New(testSnapshot())

	for _, expr := range []string{
		"2 +",
		"foo(3)",
		"1 / 0",
		"avg()",
		"growth_rate(1)",
		"2 $ 3",
		"(1 + 2",
	} {
		_, err := c.Evaluate(expr)
		assert.Error(t, err, "expression %q should not evaluate", expr)
	}
}

func TestExplain(t *testing.T) {
	assert.Contains(t, Explain("2 + 3", 5), "2 + 3")
	assert.Contains(t, Explain("2 + 3", 5), "5.00")
}
