// Package assistant orchestrates the query pipeline: analyze the question,
// fetch data from the required sources, and generate the answer, follow-up
// questions and optional insights.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talkdataco/financial-assistant/apimodels"
	"github.com/talkdataco/financial-assistant/internal/connector"
	"github.com/talkdataco/financial-assistant/internal/history"
	"github.com/talkdataco/financial-assistant/internal/insight"
	"github.com/talkdataco/financial-assistant/internal/llm"
	"github.com/talkdataco/financial-assistant/internal/metrics"
	"github.com/talkdataco/financial-assistant/internal/query"
	"github.com/talkdataco/financial-assistant/internal/rag"
)

type Assistant struct {
	analyzer *query.Analyzer
	fetcher  *connector.Fetcher
	engine   *rag.Engine
	insights *insight.Generator

	// history is nil when query history is disabled
	history *history.Store

	defaultModel string
}

func New(provider llm.Provider, fetcher *connector.Fetcher, hist *history.Store, defaultModel string) *Assistant {
	return &Assistant{
		analyzer:     query.NewAnalyzer(provider),
		fetcher:      fetcher,
		engine:       rag.NewEngine(provider, rag.NewEmbedder(provider)),
		insights:     insight.NewGenerator(provider),
		history:      hist,
		defaultModel: defaultModel,
	}
}

func (a *Assistant) Answer(ctx context.Context, req apimodels.QueryRequest) (*apimodels.QueryResponse, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	slog.Info("answering query", "query", req.Query)
	startTime := time.Now()

	resp, err := a.answer(ctx, req, startTime)
	metrics.ObserveQuery(err == nil, time.Since(startTime))
	return resp, err
}

func (a *Assistant) answer(ctx context.Context, req apimodels.QueryRequest, startTime time.Time) (*apimodels.QueryResponse, error) {
	opts := []llm.Option{
		llm.WithModel(req.Options.Model),
		llm.WithMaxTokens(req.Options.MaxTokens),
		llm.WithTemperature(req.Options.Temperature),
	}

	var total llm.Usage

	analysis, usage, err := a.analyzer.Analyze(ctx, req.Query, opts...)
	if err != nil {
		return nil, err
	}
	total.Add(usage)
	slog.Debug("query analyzed",
		"sources", analysis.RequiredSources(),
		"metrics", analysis.Metrics,
		"period", analysis.TimePeriod)

	snapshot := a.fetcher.Fetch(ctx, req.Query, analysis)

	var answer string
	if snapshot.AllFailed() {
		slog.Warn("all data sources failed", "errors", snapshot.Errors)
		answer, usage, err = a.engine.SourcesUnavailable(ctx, snapshot, opts...)
	} else {
		answer, usage, err = a.engine.GenerateAnswer(ctx, snapshot, opts...)
	}
	if err != nil {
		return nil, err
	}
	total.Add(usage)

	followUps, usage := a.engine.FollowUpQuestions(ctx, snapshot, answer, opts...)
	total.Add(usage)

	var insights []string
	if req.Options.IncludeInsights && !snapshot.AllFailed() {
		insights, usage, err = a.insights.Generate(ctx, snapshot, opts...)
		if err != nil {
			// Insights are an extra; the answer still stands without them.
			slog.Warn("insight generation failed", "error", err)
		}
		total.Add(usage)
	}

	metrics.ObserveTokens("prompt", total.PromptTokens)
	metrics.ObserveTokens("completion", total.CompletionTokens)

	model := req.Options.Model
	if model == "" {
		model = a.defaultModel
	}

	sources := make([]string, 0, len(snapshot.Sources))
	for source := range snapshot.Sources {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	resp := &apimodels.QueryResponse{
		Answer:            answer,
		Insights:          insights,
		FollowUpQuestions: followUps,
		SupportingData: &apimodels.SupportingData{
			Analysis: analysis,
			Snapshot: snapshot,
		},
		Metadata: apimodels.QueryMetadata{
			ID:         uuid.NewString(),
			Duration:   time.Since(startTime).String(),
			Model:      model,
			TokensUsed: total.TotalTokens,
			Sources:    sources,
		},
	}

	a.record(ctx, resp, req.Query, startTime)
	return resp, nil
}

func (a *Assistant) record(ctx context.Context, resp *apimodels.QueryResponse, q string, startTime time.Time) {
	if a.history == nil {
		return
	}
	err := a.history.Save(ctx, history.Entry{
		ID:         resp.Metadata.ID,
		Query:      q,
		Answer:     resp.Answer,
		Sources:    resp.Metadata.Sources,
		TokensUsed: resp.Metadata.TokensUsed,
		Duration:   time.Since(startTime),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		slog.Warn("failed to record query history", "error", err)
	}
}
