package rag

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sort"

	"github.com/talkdataco/financial-assistant/internal/llm"
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// providerEmbedder uses the LLM provider's embeddings endpoint, falling back
// to deterministic local embeddings when the provider has none.
type providerEmbedder struct {
	provider llm.Provider
	fallback hashEmbedder
}

func NewEmbedder(provider llm.Provider) Embedder {
	return &providerEmbedder{provider: provider}
}

func (e *providerEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors, err := e.provider.Embed(ctx, texts)
	if err == nil {
		return vectors, nil
	}
	if !errors.Is(err, llm.ErrEmbeddingsUnsupported) {
		slog.Warn("embeddings call failed, using local embeddings", "error", err)
	}
	return e.fallback.Embed(ctx, texts)
}

const hashEmbeddingDim = 16

// hashEmbedder produces cheap deterministic vectors. Retrieval quality is
// crude but it keeps the vector store usable without an embedding model.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, hashEmbeddingDim)
		for d := range vec {
			h := fnv.New32a()
			fmt.Fprintf(h, "%d:%s", d, text)
			vec[d] = float64(h.Sum32()%1000) / 1000
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// VectorStore is an in-memory store with cosine similarity search.
type VectorStore struct {
	documents []Document
	vectors   [][]float64
	embedder  Embedder
}

// NewVectorStore indexes the documents with the embedder.
func NewVectorStore(ctx context.Context, embedder Embedder, documents []Document) (*VectorStore, error) {
	texts := make([]string, len(documents))
	for i, d := range documents {
		texts[i] = d.Content
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("indexing documents: %w", err)
	}
	if len(vectors) != len(documents) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(documents))
	}
	return &VectorStore{documents: documents, vectors: vectors, embedder: embedder}, nil
}

// Search returns the k documents most similar to the query.
func (s *VectorStore) Search(ctx context.Context, query string, k int) ([]Document, error) {
	if len(s.documents) == 0 {
		return nil, nil
	}

	queryVectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	queryVec := queryVectors[0]

	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(s.vectors))
	for i, vec := range s.vectors {
		scores[i] = scored{index: i, score: cosineSimilarity(queryVec, vec)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]Document, k)
	for i := 0; i < k; i++ {
		results[i] = s.documents[scores[i].index]
	}
	return results, nil
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
