package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkdataco/financial-assistant/internal/connector"
	"github.com/talkdataco/financial-assistant/internal/llm"
)

type fakeProvider struct {
	content string
	err     error
}

func (f *fakeProvider) Analyze(ctx context.Context, system, user []string, opts ...llm.Option) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content, Usage: llm.Usage{TotalTokens: 60}}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return nil, llm.ErrEmbeddingsUnsupported
}

func snapshot() *connector.Snapshot {
	return &connector.Snapshot{
		Query: "How is revenue trending?",
		Sources: map[string]*connector.Result{
			"stripe": {
				Source:  "stripe",
				Metrics: map[string]connector.MetricValue{"revenue": {Current: 125000}},
			},
		},
	}
}

func TestGenerateBullets(t *testing.T) {
	g := NewGenerator(&fakeProvider{content: `Key observations:
- Revenue grew 8.7% month over month.
* Organic search drives most conversions.
1. Average order value is flat.
2) Refund volume is negligible.`})

	insights, usage, err := g.Generate(context.Background(), snapshot())
	require.NoError(t, err)

	// capped at three
	require.Len(t, insights, 3)
	assert.Equal(t, "Revenue grew 8.7% month over month.", insights[0])
	assert.Equal(t, "Organic search drives most conversions.", insights[1])
	assert.Equal(t, "Average order value is flat.", insights[2])
	assert.Equal(t, int64(60), usage.TotalTokens)
}

func TestGenerateParagraphFallback(t *testing.T) {
	g := NewGenerator(&fakeProvider{content: "Revenue grew strongly this month.\n\nMost of the growth came from subscriptions."})

	insights, _, err := g.Generate(context.Background(), snapshot())
	require.NoError(t, err)

	require.Len(t, insights, 2)
	assert.Equal(t, "Revenue grew strongly this month.", insights[0])
}

func TestGenerateProviderError(t *testing.T) {
	g := NewGenerator(&fakeProvider{err: errors.New("timeout")})

	_, _, err := g.Generate(context.Background(), snapshot())
	assert.ErrorContains(t, err, "insight generation failed")
}
