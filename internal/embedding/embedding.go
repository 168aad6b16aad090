// Package embedding turns text into vectors for similarity search.
package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// batch limit imposed by the embedding API
const maxBatchSize = 100

// Embedder produces dense vectors for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder embeds text through a Gemini embedding model.
type GeminiEmbedder struct {
	model *genai.EmbeddingModel
}

var _ Embedder = (*GeminiEmbedder)(nil)

func NewGemini(client *genai.Client, modelName string) *GeminiEmbedder {
	return &GeminiEmbedder{model: client.EmbeddingModel(modelName)}
}

func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := e.model.NewBatch()
		for _, text := range texts[start:end] {
			batch = batch.AddContent(genai.Text(text))
		}
		res, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", end-start, len(res.Embeddings))
		}
		for _, emb := range res.Embeddings {
			vectors = append(vectors, emb.Values)
		}
	}
	return vectors, nil
}

func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return res.Embedding.Values, nil
}
