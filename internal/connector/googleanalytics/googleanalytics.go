// Package googleanalytics fetches metrics from the GA4 Data API.
package googleanalytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/oauth2/google"

	"github.com/talkdataco/financial-assistant/internal/config"
	"github.com/talkdataco/financial-assistant/internal/connector"
)

const (
	sourceName = "google_analytics"
	authScope  = "https://www.googleapis.com/auth/analytics.readonly"
)

// metricNames maps assistant metric names to GA4 Data API metric names.
var metricNames = map[string]string{
	"sessions":                 "sessions",
	"users":                    "totalUsers",
	"new_users":                "newUsers",
	"page_views":               "screenPageViews",
	"conversions":              "keyEvents",
	"conversion_rate":          "sessionKeyEventRate",
	"bounce_rate":              "bounceRate",
	"engagement_rate":          "engagementRate",
	"average_session_duration": "averageSessionDuration",
}

// dimensionNames maps assistant dimension names to GA4 dimensions.
var dimensionNames = map[string]string{
	"channel": "sessionDefaultChannelGroup",
	"source":  "sessionSource",
	"country": "country",
	"device":  "deviceCategory",
	"page":    "pagePath",
}

type Connector struct {
	cfg        config.GoogleAnalyticsConfig
	httpClient *http.Client
}

// New builds a connector authenticating with the configured service-account
// key file.
func New(ctx context.Context, cfg config.GoogleAnalyticsConfig) (*Connector, error) {
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading google analytics key file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(key, authScope)
	if err != nil {
		return nil, fmt.Errorf("parsing google analytics key file: %w", err)
	}

	client := jwt.Client(ctx)
	client.Timeout = cfg.Timeout

	return &Connector{cfg: cfg, httpClient: client}, nil
}

// NewWithClient builds a connector around an existing HTTP client. Used in
// tests to point at a stub server.
func NewWithClient(cfg config.GoogleAnalyticsConfig, client *http.Client) *Connector {
	return &Connector{cfg: cfg, httpClient: client}
}

func (c *Connector) Name() string { return sourceName }

func (c *Connector) Fetch(ctx context.Context, req connector.Request) (*connector.Result, error) {
	result := &connector.Result{
		Source:  sourceName,
		Range:   req.Range,
		Metrics: make(map[string]connector.MetricValue),
	}

	var known []string
	for _, m := range req.Metrics {
		if _, ok := metricNames[m]; ok {
			known = append(known, m)
		} else {
			result.Metrics[m] = connector.MetricValue{Err: fmt.Sprintf("metric %q not available from google analytics", m)}
		}
	}
	if len(known) == 0 {
		return result, nil
	}

	// Totals come from an undimensioned report so rate metrics stay correct.
	totals, err := c.runReport(ctx, known, nil, req)
	if err != nil {
		return nil, err
	}
	for name, value := range totals {
		result.Metrics[name] = value
	}

	if len(req.Dimensions) > 0 {
		if err := c.addBreakdowns(ctx, known, req, result); err != nil {
			// Totals are already in hand; breakdowns are best effort.
			slog.Warn("google analytics breakdown fetch failed", "error", err)
		}
	}

	return result, nil
}

func (c *Connector) addBreakdowns(ctx context.Context, metricKeys []string, req connector.Request, result *connector.Result) error {
	var dims []string
	for _, d := range req.Dimensions {
		if _, ok := dimensionNames[d]; ok {
			dims = append(dims, d)
		}
	}
	if len(dims) == 0 {
		return nil
	}

	breakdowns, err := c.runReportByDimensions(ctx, metricKeys, dims, req)
	if err != nil {
		return err
	}

	for name, byDim := range breakdowns {
		value := result.Metrics[name]
		value.Dimensions = byDim
		result.Metrics[name] = value
	}
	return nil
}

type runReportRequest struct {
	DateRanges      []dateRange       `json:"dateRanges"`
	Metrics         []namedSpec       `json:"metrics"`
	Dimensions      []namedSpec       `json:"dimensions,omitempty"`
	DimensionFilter *filterExpression `json:"dimensionFilter,omitempty"`
	Limit           string            `json:"limit,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type namedSpec struct {
	Name string `json:"name"`
}

type filterExpression struct {
	Filter *dimensionFilter `json:"filter,omitempty"`
}

type dimensionFilter struct {
	FieldName    string        `json:"fieldName"`
	StringFilter *stringFilter `json:"stringFilter,omitempty"`
}

type stringFilter struct {
	Value string `json:"value"`
}

type runReportResponse struct {
	MetricHeaders []struct {
		Name string `json:"name"`
	} `json:"metricHeaders"`
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

// runReport fetches totals for the given metrics over the request range.
func (c *Connector) runReport(ctx context.Context, metricKeys []string, dims []string, req connector.Request) (map[string]connector.MetricValue, error) {
	resp, err := c.do(ctx, buildReportRequest(metricKeys, dims, req))
	if err != nil {
		return nil, err
	}

	values := make(map[string]connector.MetricValue, len(metricKeys))
	if len(resp.Rows) == 0 {
		for _, name := range metricKeys {
			values[name] = connector.MetricValue{}
		}
		return values, nil
	}

	row := resp.Rows[0]
	for i, name := range metricKeys {
		if i >= len(row.MetricValues) {
			break
		}
		v, err := strconv.ParseFloat(row.MetricValues[i].Value, 64)
		if err != nil {
			values[name] = connector.MetricValue{Err: fmt.Sprintf("unparseable value %q", row.MetricValues[i].Value)}
			continue
		}
		values[name] = connector.MetricValue{Current: v}
	}
	return values, nil
}

// runReportByDimensions fetches per-dimension breakdowns for the metrics.
func (c *Connector) runReportByDimensions(ctx context.Context, metricKeys, dims []string, req connector.Request) (map[string]map[string]map[string]float64, error) {
	resp, err := c.do(ctx, buildReportRequest(metricKeys, dims, req))
	if err != nil {
		return nil, err
	}

	breakdowns := make(map[string]map[string]map[string]float64)
	for _, row := range resp.Rows {
		for mi, name := range metricKeys {
			if mi >= len(row.MetricValues) {
				continue
			}
			v, err := strconv.ParseFloat(row.MetricValues[mi].Value, 64)
			if err != nil {
				continue
			}
			for di, dim := range dims {
				if di >= len(row.DimensionValues) {
					continue
				}
				if breakdowns[name] == nil {
					breakdowns[name] = make(map[string]map[string]float64)
				}
				if breakdowns[name][dim] == nil {
					breakdowns[name][dim] = make(map[string]float64)
				}
				breakdowns[name][dim][row.DimensionValues[di].Value] += v
			}
		}
	}
	return breakdowns, nil
}

func buildReportRequest(metricKeys, dims []string, req connector.Request) runReportRequest {
	body := runReportRequest{
		DateRanges: []dateRange{{
			StartDate: req.Range.Start.Format("2006-01-02"),
			EndDate:   req.Range.End.Format("2006-01-02"),
		}},
		Limit: "250",
	}
	for _, m := range metricKeys {
		body.Metrics = append(body.Metrics, namedSpec{Name: metricNames[m]})
	}
	for _, d := range dims {
		body.Dimensions = append(body.Dimensions, namedSpec{Name: dimensionNames[d]})
	}
	for key, value := range req.Filters {
		ga, ok := dimensionNames[key]
		if !ok {
			continue
		}
		body.DimensionFilter = &filterExpression{
			Filter: &dimensionFilter{
				FieldName:    ga,
				StringFilter: &stringFilter{Value: value},
			},
		}
		break
	}
	return body
}

func (c *Connector) do(ctx context.Context, body runReportRequest) (*runReportResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", c.cfg.Endpoint, c.cfg.PropertyID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google analytics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("google analytics returned %d: %s", resp.StatusCode, msg)
	}

	var report runReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding google analytics response: %w", err)
	}
	return &report, nil
}
