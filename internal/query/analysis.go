package query

import "strings"

// Canonical connector names.
const (
	SourceGoogleAnalytics = "google_analytics"
	SourceStripe          = "stripe"
)

// Analysis is the structured breakdown of a user query: which sources to
// consult, what to ask them for, and over which time ranges.
type Analysis struct {
	DataSources      []string `json:"data_sources"`
	Metrics          []string `json:"metrics"`
	Dimensions       []string `json:"dimensions,omitempty"`
	TimePeriod       string   `json:"time_period"`
	ComparisonPeriod string   `json:"comparison_period,omitempty"`
	Filters          []string `json:"filters,omitempty"`
}

// sourceAliases maps the names models tend to produce to canonical connector names.
var sourceAliases = map[string]string{
	"google_analytics": SourceGoogleAnalytics,
	"google analytics": SourceGoogleAnalytics,
	"googleanalytics":  SourceGoogleAnalytics,
	"analytics":        SourceGoogleAnalytics,
	"ga":               SourceGoogleAnalytics,
	"ga4":              SourceGoogleAnalytics,
	"stripe":           SourceStripe,
	"payments":         SourceStripe,
	"billing":          SourceStripe,
}

// RequiredSources returns the canonical connector names for the analysis,
// deduplicated and in stable order. Unrecognized sources are passed through
// untouched so the fetcher can report them as unavailable.
func (a Analysis) RequiredSources() []string {
	seen := make(map[string]bool)
	var sources []string
	for _, s := range a.DataSources {
		name := strings.ToLower(strings.TrimSpace(s))
		if canonical, ok := sourceAliases[name]; ok {
			name = canonical
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		sources = append(sources, name)
	}
	return sources
}

// ParsedFilters splits "key:value" filter strings into a map, mirroring the
// format the query analysis prompt asks for.
func (a Analysis) ParsedFilters() map[string]string {
	if len(a.Filters) == 0 {
		return nil
	}
	filters := make(map[string]string)
	for _, f := range a.Filters {
		key, value, found := strings.Cut(f, ":")
		if !found {
			continue
		}
		filters[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return filters
}
