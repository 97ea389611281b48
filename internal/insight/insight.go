// Package insight generates non-obvious observations over fetched data.
package insight

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/talkdataco/financial-assistant/internal/connector"
	"github.com/talkdataco/financial-assistant/internal/llm"
	"github.com/talkdataco/financial-assistant/internal/prompts"
	"github.com/talkdataco/financial-assistant/internal/rag"
)

const maxInsights = 3

type Generator struct {
	provider llm.Provider
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

// Generate asks the LLM for 2-3 key insights over the snapshot.
func (g *Generator) Generate(ctx context.Context, snapshot *connector.Snapshot, opts ...llm.Option) ([]string, llm.Usage, error) {
	resp, err := g.provider.Analyze(
		ctx,
		[]string{prompts.SystemPrompt},
		[]string{prompts.Insights(rag.BuildContext(snapshot))},
		opts...,
	)
	if err != nil {
		return nil, llm.Usage{}, fmt.Errorf("insight generation failed: %w", err)
	}

	return parseInsights(resp.Content), resp.Usage, nil
}

var bulletPattern = regexp.MustCompile(`^([-*]|\d+[.)])\s+`)

// parseInsights extracts bulleted or numbered lines; when the output has no
// structure it falls back to the first paragraphs.
func parseInsights(content string) []string {
	var insights []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if bulletPattern.MatchString(line) {
			insights = append(insights, bulletPattern.ReplaceAllString(line, ""))
		}
	}

	if len(insights) == 0 {
		for _, paragraph := range strings.Split(content, "\n\n") {
			paragraph = strings.TrimSpace(paragraph)
			if paragraph != "" {
				insights = append(insights, paragraph)
			}
		}
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}
