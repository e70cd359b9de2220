package embedding

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"github.com/hyperjump/joubun/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline indexing.
// It hashes the character bigrams of the text into buckets, so texts that
// share terms (法令名, 条文見出し) land close together without a model.
type MockEmbedder struct {
	dimensions int
	calls      atomic.Int64
}

// NewMockEmbedder returns a mock embedder of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length bigram histogram of text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	emb := make([]float32, e.dimensions)
	runes := []rune(text)
	if len(runes) == 1 {
		emb[bucket(string(runes), e.dimensions)] = 1
	}
	for i := 0; i+1 < len(runes); i++ {
		emb[bucket(string(runes[i:i+2]), e.dimensions)]++
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func bucket(s string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(n))
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Calls returns how many texts have been embedded.
func (e *MockEmbedder) Calls() int {
	return int(e.calls.Load())
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
