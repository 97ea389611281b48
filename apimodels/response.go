package apimodels

type QueryResponse struct {
	// The generated answer
	Answer string `json:"answer"`

	// Additional insights, present when requested
	Insights []string `json:"insights,omitempty"`

	// Suggested follow-up questions
	FollowUpQuestions []string `json:"followUpQuestions,omitempty"`

	// Any supporting data used to build the answer
	SupportingData *SupportingData `json:"supportingData,omitempty"`

	// Metadata about the request
	Metadata QueryMetadata `json:"metadata"`
}

type SupportingData struct {
	// Structured analysis of the query
	Analysis interface{} `json:"analysis,omitempty"`

	// Raw metric data fetched from the data sources
	Snapshot interface{} `json:"snapshot,omitempty"`
}

type QueryMetadata struct {
	// Unique identifier assigned to the request
	ID string `json:"id"`

	// Time taken to answer
	Duration string `json:"duration"`

	// Model used for generation
	Model string `json:"model"`

	// Tokens used across all LLM calls
	TokensUsed int64 `json:"tokensUsed"`

	// Data sources consulted
	Sources []string `json:"sources,omitempty"`
}
