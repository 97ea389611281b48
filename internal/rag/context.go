package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talkdataco/financial-assistant/internal/connector"
)

const displayDateFormat = "January 2, 2006"

// currencyMetrics are rendered with a currency symbol.
var currencyMetrics = map[string]bool{
	"revenue":             true,
	"average_order_value": true,
	"refunds":             true,
}

// Document is one indexable unit of fetched data.
type Document struct {
	Content  string
	Metadata map[string]string
}

// BuildContext renders a snapshot into the context string handed to the LLM.
func BuildContext(snapshot *connector.Snapshot) string {
	var b strings.Builder

	b.WriteString("USER QUERY: " + snapshot.Query + "\n")
	b.WriteString("\nQUERY METADATA:\n")
	b.WriteString("- Time period: " + snapshot.TimePeriod + "\n")
	if snapshot.ComparisonPeriod != "" {
		b.WriteString("- Comparison period: " + snapshot.ComparisonPeriod + "\n")
	}
	b.WriteString(fmt.Sprintf("- Date range: %s to %s\n",
		snapshot.Range.Start.Format(displayDateFormat),
		snapshot.Range.End.Format(displayDateFormat)))
	if snapshot.ComparisonRange != nil {
		b.WriteString(fmt.Sprintf("- Comparison range: %s to %s\n",
			snapshot.ComparisonRange.Start.Format(displayDateFormat),
			snapshot.ComparisonRange.End.Format(displayDateFormat)))
	}

	b.WriteString("\nDATASOURCE RESULTS:\n")

	for _, source := range sortedKeys(snapshot.Errors) {
		b.WriteString(fmt.Sprintf("\n%s ERROR: %s\n", strings.ToUpper(source), snapshot.Errors[source]))
	}

	for _, source := range sortedKeys(snapshot.Sources) {
		result := snapshot.Sources[source]
		b.WriteString(fmt.Sprintf("\n%s DATA:\n", strings.ToUpper(source)))
		for _, metric := range sortedKeys(result.Metrics) {
			writeMetric(&b, metric, result.Metrics[metric])
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeMetric(b *strings.Builder, name string, value connector.MetricValue) {
	if value.Err != "" {
		b.WriteString(fmt.Sprintf("- %s: Error - %s\n", name, value.Err))
		return
	}

	b.WriteString("- " + displayName(name) + ":\n")
	b.WriteString("  * Current value: " + formatValue(name, value.Current) + "\n")
	if value.Previous != nil {
		b.WriteString("  * Previous value: " + formatValue(name, *value.Previous) + "\n")
	}
	if value.Change != nil {
		direction := "increase"
		if *value.Change < 0 {
			direction = "decrease"
		}
		b.WriteString(fmt.Sprintf("  * Change: %.2f%% %s\n", abs(*value.Change)*100, direction))
	}
	for _, dim := range sortedKeys(value.Dimensions) {
		b.WriteString("  * By " + strings.ReplaceAll(dim, "_", " ") + ":\n")
		byValue := value.Dimensions[dim]
		for _, category := range sortedKeys(byValue) {
			b.WriteString(fmt.Sprintf("    - %s: %s\n", displayName(category), formatValue(name, byValue[category])))
		}
	}
}

// BuildDocuments renders one document per metric for vector store indexing,
// plus a summary document covering the whole snapshot.
func BuildDocuments(snapshot *connector.Snapshot) []Document {
	documents := []Document{{
		Content:  BuildContext(snapshot),
		Metadata: map[string]string{"source": "summary", "query": snapshot.Query},
	}}

	for _, source := range sortedKeys(snapshot.Sources) {
		result := snapshot.Sources[source]
		for _, metric := range sortedKeys(result.Metrics) {
			value := result.Metrics[metric]
			if value.Err != "" {
				continue
			}

			var b strings.Builder
			b.WriteString(fmt.Sprintf("%s from %s:\n", displayName(metric), source))
			b.WriteString("Current value: " + formatValue(metric, value.Current) + "\n")
			if value.Previous != nil {
				b.WriteString("Previous value: " + formatValue(metric, *value.Previous) + "\n")
			}
			if value.Change != nil {
				direction := "increased"
				if *value.Change < 0 {
					direction = "decreased"
				}
				b.WriteString(fmt.Sprintf("The %s has %s by %.2f%% compared to the previous period.\n",
					strings.ReplaceAll(metric, "_", " "), direction, abs(*value.Change)*100))
			}
			for _, dim := range sortedKeys(value.Dimensions) {
				b.WriteString("Breakdown by " + strings.ReplaceAll(dim, "_", " ") + ":\n")
				byValue := value.Dimensions[dim]
				for _, category := range sortedKeys(byValue) {
					b.WriteString(fmt.Sprintf("- %s: %s\n", displayName(category), formatValue(metric, byValue[category])))
				}
			}

			documents = append(documents, Document{
				Content: strings.TrimRight(b.String(), "\n"),
				Metadata: map[string]string{
					"source": source,
					"metric": metric,
					"query":  snapshot.Query,
				},
			})
		}
	}

	return documents
}

// ContextSummary is the one-line description of what was fetched, used in
// the follow-up question prompt.
func ContextSummary(snapshot *connector.Snapshot) string {
	sources := sortedKeys(snapshot.Sources)
	seen := make(map[string]bool)
	var metricNames []string
	for _, source := range sources {
		for _, metric := range sortedKeys(snapshot.Sources[source].Metrics) {
			if !seen[metric] {
				seen[metric] = true
				metricNames = append(metricNames, metric)
			}
		}
	}
	return fmt.Sprintf("Data sources: %s. Metrics: %s.",
		strings.Join(sources, ", "), strings.Join(metricNames, ", "))
}

// formatValue renders a metric value as a percentage, currency amount or
// plain number depending on the metric name.
func formatValue(metric string, v float64) string {
	if isPercentMetric(metric, v) {
		return fmt.Sprintf("%.2f%%", v*100)
	}
	if currencyMetrics[metric] {
		return "$" + withCommas(fmt.Sprintf("%.2f", v))
	}
	if v == float64(int64(v)) {
		return withCommas(fmt.Sprintf("%d", int64(v)))
	}
	return withCommas(fmt.Sprintf("%.2f", v))
}

func isPercentMetric(metric string, v float64) bool {
	return v >= 0 && v <= 1 &&
		(strings.HasSuffix(metric, "rate") || strings.HasSuffix(metric, "percentage"))
}

// withCommas inserts thousands separators into the integer part of a
// formatted number.
func withCommas(s string) string {
	intPart := s
	var rest string
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, rest = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return intPart + rest
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + rest
}

func displayName(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
