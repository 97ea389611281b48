package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/talkdataco/financial-assistant/internal/llm"
	"github.com/talkdataco/financial-assistant/internal/prompts"
)

// Analyzer turns a natural language query into a structured Analysis using
// the LLM, with a keyword heuristic as a fallback when the model output
// cannot be parsed.
type Analyzer struct {
	provider llm.Provider
}

func NewAnalyzer(provider llm.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

func (a *Analyzer) Analyze(ctx context.Context, query string, opts ...llm.Option) (*Analysis, llm.Usage, error) {
	resp, err := a.provider.Analyze(
		ctx,
		[]string{prompts.SystemPrompt},
		[]string{prompts.QueryAnalysis(query)},
		opts...,
	)
	if err != nil {
		return nil, llm.Usage{}, fmt.Errorf("query analysis failed: %w", err)
	}

	analysis, err := parseAnalysis(resp.Content)
	if err != nil {
		slog.Warn("could not parse query analysis, falling back to heuristics", "error", err)
		analysis = heuristicAnalysis(query)
	}

	if len(analysis.RequiredSources()) == 0 {
		heuristic := heuristicAnalysis(query)
		analysis.DataSources = heuristic.DataSources
		if len(analysis.Metrics) == 0 {
			analysis.Metrics = heuristic.Metrics
		}
	}
	if analysis.TimePeriod == "" {
		analysis.TimePeriod = "last_30_days"
	}

	return analysis, resp.Usage, nil
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseAnalysis extracts the JSON object from the model output, repairing
// malformed JSON before unmarshaling.
func parseAnalysis(content string) (*Analysis, error) {
	raw := jsonObjectPattern.FindString(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("unmarshal failed and repair failed: %w", repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &analysis); err != nil {
			return nil, fmt.Errorf("unmarshal of repaired JSON failed: %w", err)
		}
	}
	return &analysis, nil
}

// metricKeywords routes query terms to sources and metric names when the LLM
// output is unusable. Ordering inside the slice is not significant.
var metricKeywords = []struct {
	keyword string
	source  string
	metric  string
}{
	{"revenue", SourceStripe, "revenue"},
	{"sales", SourceStripe, "revenue"},
	{"mrr", SourceStripe, "revenue"},
	{"churn", SourceStripe, "churn_rate"},
	{"refund", SourceStripe, "refunds"},
	{"order value", SourceStripe, "average_order_value"},
	{"customer", SourceStripe, "new_customers"},
	{"conversion", SourceGoogleAnalytics, "conversion_rate"},
	{"session", SourceGoogleAnalytics, "sessions"},
	{"page view", SourceGoogleAnalytics, "page_views"},
	{"pageview", SourceGoogleAnalytics, "page_views"},
	{"traffic", SourceGoogleAnalytics, "sessions"},
	{"visitor", SourceGoogleAnalytics, "users"},
	{"user", SourceGoogleAnalytics, "users"},
	{"bounce", SourceGoogleAnalytics, "bounce_rate"},
}

var periodKeywords = []struct {
	keyword string
	period  string
}{
	{"last week", "last_week"},
	{"past week", "last_week"},
	{"last month", "last_month"},
	{"past month", "last_month"},
	{"last 30 days", "last_30_days"},
	{"last 90 days", "last_90_days"},
	{"year to date", "year_to_date"},
	{"ytd", "year_to_date"},
	{"q1", "q1"},
	{"q2", "q2"},
	{"q3", "q3"},
	{"q4", "q4"},
}

func heuristicAnalysis(query string) *Analysis {
	lower := strings.ToLower(query)
	analysis := &Analysis{TimePeriod: "last_30_days"}

	seenSource := make(map[string]bool)
	seenMetric := make(map[string]bool)
	for _, kw := range metricKeywords {
		if !strings.Contains(lower, kw.keyword) {
			continue
		}
		if !seenSource[kw.source] {
			seenSource[kw.source] = true
			analysis.DataSources = append(analysis.DataSources, kw.source)
		}
		if !seenMetric[kw.metric] {
			seenMetric[kw.metric] = true
			analysis.Metrics = append(analysis.Metrics, kw.metric)
		}
	}

	// Nothing matched: consult both sources with their headline metrics.
	if len(analysis.DataSources) == 0 {
		analysis.DataSources = []string{SourceGoogleAnalytics, SourceStripe}
		analysis.Metrics = []string{"sessions", "revenue"}
	}

	for _, kw := range periodKeywords {
		if strings.Contains(lower, kw.keyword) {
			analysis.TimePeriod = kw.period
			break
		}
	}

	if strings.Contains(lower, "compared to") || strings.Contains(lower, "vs") || strings.Contains(lower, "versus") {
		analysis.ComparisonPeriod = "previous_period"
	}

	return analysis
}
