// Package prompts holds the prompt templates for every LLM call the
// assistant makes.
package prompts

import "fmt"

const SystemPrompt = `You are a marketing analytics assistant that helps users understand their business data from Google Analytics and Stripe.`

const queryAnalysisTemplate = `Analyze the following user query about business metrics and determine:
1. Which data sources are needed: "google_analytics", "stripe", or both
2. Which specific metrics are required (snake_case, e.g. "conversion_rate", "revenue")
3. Dimensions to segment by, if any (e.g. "product_category", "channel")
4. The time period, as one of: last_week, last_month, last_30_days, last_90_days, year_to_date, q1, q2, q3, q4
5. A comparison period if the query compares against another range (e.g. "previous_period")
6. Filters as "key:value" strings, if any

User Query: %s

Respond with ONLY a JSON object, no prose, matching this shape:
{"data_sources": ["..."], "metrics": ["..."], "dimensions": ["..."], "time_period": "...", "comparison_period": "...", "filters": ["..."]}`

// QueryAnalysis renders the prompt asking the model to break a query down
// into sources, metrics and time ranges.
func QueryAnalysis(query string) string {
	return fmt.Sprintf(queryAnalysisTemplate, query)
}

const responseTemplate = `Use the following data to answer the user's question.

%s

Provide a helpful, concise response in a professional tone. Include key numbers and percentage changes.
Break down complex information into easily understandable points.
Highlight significant trends or insights from the data.

If there are notable percentage changes (positive or negative), suggest possible explanations or implications.
When relevant, offer actionable recommendations based on the data.
If a data source reported an error, acknowledge what could not be fetched instead of guessing.

You may call the "calculate" function to derive numbers that are not directly present in the data.`

// Response renders the system prompt for answer generation over the given context.
func Response(context string) string {
	return fmt.Sprintf(responseTemplate, context)
}

const followUpTemplate = `Based on the following user question, data context, and your response,
suggest 3 follow-up questions the user might want to ask next.

Original question: %s

Data context summary:
%s

Your response to the user:
%s

Generate 3 useful follow-up questions that would provide additional insights
or explore related aspects of the data. These should be logical next questions
that probe deeper into the current topic or explore related metrics.

Format your response as a JSON list like:
["Question 1?", "Question 2?", "Question 3?"]`

// FollowUp renders the prompt asking for follow-up question suggestions.
func FollowUp(query, contextSummary, response string) string {
	return fmt.Sprintf(followUpTemplate, query, contextSummary, response)
}

const insightTemplate = `You are a marketing analyst reviewing business data.

Based on the following data, identify 2-3 key insights that might not be immediately obvious.

%s

Focus on:
- Correlations between different metrics
- Unusual patterns or anomalies
- Business opportunities or risks
- Potential causes for significant changes

Provide insights that go beyond the surface-level metrics and help understand the underlying business dynamics.
Your insights should be data-driven, specific, and actionable.

Respond with a short bulleted list.`

// Insights renders the prompt asking for non-obvious insights over the context.
func Insights(context string) string {
	return fmt.Sprintf(insightTemplate, context)
}

const unavailableTemplate = `Every configured data source failed while answering the user's question.
Provide a concise, friendly message explaining that the data could not be fetched
and that they should try again later. Mention which sources failed.

Original question: %s

Source errors:
%s`

// SourcesUnavailable renders the prompt used when no data could be fetched at all.
func SourcesUnavailable(query, errors string) string {
	return fmt.Sprintf(unavailableTemplate, query, errors)
}
