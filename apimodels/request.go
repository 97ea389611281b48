package apimodels

type QueryRequest struct {
	// Query is the natural language question to answer
	Query string `json:"query"`

	// Optional parameters to control answer generation
	Options QueryOptions `json:"options,omitempty"`
}

type QueryOptions struct {
	// Model specifies which LLM model to use (e.g. "mistral:7b")
	Model string `json:"model,omitempty"`

	// MaxTokens limits the LLM response length
	MaxTokens int64 `json:"maxTokens,omitempty"`

	// Temperature controls randomness (0.0-1.0)
	Temperature float64 `json:"temperature,omitempty"`

	// IncludeInsights requests an extra pass generating non-obvious insights
	IncludeInsights bool `json:"includeInsights,omitempty"`
}
