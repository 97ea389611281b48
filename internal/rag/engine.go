package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"

	"github.com/talkdataco/financial-assistant/internal/calc"
	"github.com/talkdataco/financial-assistant/internal/connector"
	"github.com/talkdataco/financial-assistant/internal/llm"
	"github.com/talkdataco/financial-assistant/internal/prompts"
)

const (
	// maxCalcSteps bounds the calculate-tool loop during answer generation.
	maxCalcSteps = 3

	// maxAnswerLen truncates runaway model output.
	maxAnswerLen = 5000

	// maxContextChars is the rendered-context size above which generation
	// switches to the top retrieved documents instead of the full context.
	maxContextChars = 8000

	retrievalK = 4
)

var defaultFollowUps = []string{
	"How does this compare to industry benchmarks?",
	"What factors might have contributed to these results?",
	"What actions could improve these metrics?",
}

var calculateTool = openai.ChatCompletionToolParam{
	Type: openai.F(openai.ChatCompletionToolTypeFunction),
	Function: openai.F(openai.FunctionDefinitionParam{
		Name: openai.String("calculate"),
		Description: openai.String("Evaluate an arithmetic expression over the fetched metrics. " +
			"Reference metrics as SOURCE:METRIC:FIELD, e.g. stripe:revenue:current or GA:sessions:previous. " +
			"Functions: abs, round, min, max, sum, avg, percent, growth_rate(current, previous), percentage_change(current, previous)."),
		Parameters: openai.F(openai.FunctionParameters(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"expression": map[string]interface{}{
					"type":        "string",
					"description": "The expression to evaluate",
				},
			},
			"required": []string{"expression"},
		})),
	}),
}

// Engine generates grounded answers over a snapshot of fetched data.
type Engine struct {
	provider llm.Provider
	embedder Embedder
}

func NewEngine(provider llm.Provider, embedder Embedder) *Engine {
	return &Engine{provider: provider, embedder: embedder}
}

// GenerateAnswer builds the data context and asks the LLM for the final
// answer. The model may call the calculate tool to derive figures; results
// are folded back into the context for the next step.
func (e *Engine) GenerateAnswer(ctx context.Context, snapshot *connector.Snapshot, opts ...llm.Option) (string, llm.Usage, error) {
	dataContext := e.prepareContext(ctx, snapshot)
	calculator := calc.New(snapshot)

	var (
		usage     llm.Usage
		calcNotes strings.Builder
	)

	for step := 0; step <= maxCalcSteps; step++ {
		callOpts := opts
		if step < maxCalcSteps {
			callOpts = append(append([]llm.Option{}, opts...), llm.WithTools([]openai.ChatCompletionToolParam{calculateTool}))
		}

		resp, err := e.provider.Analyze(
			ctx,
			[]string{prompts.Response(dataContext + calcNotes.String())},
			[]string{snapshot.Query},
			callOpts...,
		)
		if err != nil {
			return "", usage, fmt.Errorf("answer generation failed: %w", err)
		}
		usage.Add(resp.Usage)

		if resp.FunctionCall == nil {
			return truncate(resp.Content, maxAnswerLen), usage, nil
		}

		expression, err := parseCalculateArgs(resp.FunctionCall.Arguments)
		note := ""
		if err != nil {
			note = fmt.Sprintf("- calculation request could not be parsed: %v", err)
		} else if result, evalErr := calculator.Evaluate(expression); evalErr != nil {
			note = fmt.Sprintf("- %s could not be evaluated: %v", expression, evalErr)
		} else {
			note = "- " + calc.Explain(expression, result)
		}

		if calcNotes.Len() == 0 {
			calcNotes.WriteString("\n\nCALCULATIONS:\n")
		}
		calcNotes.WriteString(note + "\n")
		slog.Debug("calculate tool step", "step", step+1, "note", note)
	}

	return "", usage, fmt.Errorf("no final answer after %d calculation steps", maxCalcSteps)
}

// prepareContext renders the snapshot; oversized contexts are replaced by
// the most relevant retrieved documents.
func (e *Engine) prepareContext(ctx context.Context, snapshot *connector.Snapshot) string {
	full := BuildContext(snapshot)
	if len(full) <= maxContextChars {
		return full
	}

	store, err := NewVectorStore(ctx, e.embedder, BuildDocuments(snapshot))
	if err != nil {
		slog.Warn("vector store build failed, using full context", "error", err)
		return full
	}
	docs, err := store.Search(ctx, snapshot.Query, retrievalK)
	if err != nil || len(docs) == 0 {
		slog.Warn("vector search failed, using full context", "error", err)
		return full
	}

	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}

// FollowUpQuestions asks for three follow-up questions. Any failure falls
// back to the default suggestions rather than failing the request.
func (e *Engine) FollowUpQuestions(ctx context.Context, snapshot *connector.Snapshot, answer string, opts ...llm.Option) ([]string, llm.Usage) {
	resp, err := e.provider.Analyze(
		ctx,
		[]string{prompts.SystemPrompt},
		[]string{prompts.FollowUp(snapshot.Query, ContextSummary(snapshot), answer)},
		opts...,
	)
	if err != nil {
		slog.Warn("follow-up generation failed, using defaults", "error", err)
		return defaultFollowUps, llm.Usage{}
	}

	questions := parseQuestionList(resp.Content)
	if len(questions) == 0 {
		questions = defaultFollowUps
	}
	return questions, resp.Usage
}

// SourcesUnavailable asks the model to explain a total fetch failure.
func (e *Engine) SourcesUnavailable(ctx context.Context, snapshot *connector.Snapshot, opts ...llm.Option) (string, llm.Usage, error) {
	var errs strings.Builder
	for source, msg := range snapshot.Errors {
		fmt.Fprintf(&errs, "- %s: %s\n", source, msg)
	}

	resp, err := e.provider.Analyze(
		ctx,
		[]string{prompts.SourcesUnavailable(snapshot.Query, errs.String())},
		[]string{snapshot.Query},
		opts...,
	)
	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("failure explanation failed: %w", err)
	}
	return truncate(resp.Content, maxAnswerLen), resp.Usage, nil
}

func parseCalculateArgs(raw string) (string, error) {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return "", err
		}
		if err := json.Unmarshal([]byte(repaired), &args); err != nil {
			return "", err
		}
	}
	if args.Expression == "" {
		return "", fmt.Errorf("empty expression")
	}
	return args.Expression, nil
}

var (
	jsonListPattern     = regexp.MustCompile(`(?s)\[.*\]`)
	numberedLinePattern = regexp.MustCompile(`^\d+[.)]\s*`)
)

// parseQuestionList extracts questions from model output: a JSON list when
// possible, numbered lines otherwise.
func parseQuestionList(content string) []string {
	if raw := jsonListPattern.FindString(content); raw != "" {
		var questions []string
		if err := json.Unmarshal([]byte(raw), &questions); err != nil {
			if repaired, repairErr := jsonrepair.JSONRepair(raw); repairErr == nil {
				_ = json.Unmarshal([]byte(repaired), &questions)
			}
		}
		if len(questions) > 0 {
			return questions
		}
	}

	var questions []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if numberedLinePattern.MatchString(line) {
			questions = append(questions, numberedLinePattern.ReplaceAllString(line, ""))
		}
	}
	return questions
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "\n[truncated]"
	}
	return s
}
