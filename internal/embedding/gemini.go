package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/hyperjump/joubun/pkg/utils"
)

// DefaultGeminiModel is the embedding model the statute corpus was built with.
const DefaultGeminiModel = "text-embedding-004"

// GeminiConfig configures a GeminiEmbedder.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	// RequestsPerMinute throttles calls; 0 disables throttling.
	RequestsPerMinute int
}

// GeminiEmbedder embeds text with the Google Generative AI embedding API.
type GeminiEmbedder struct {
	client     *genai.Client
	model      *genai.EmbeddingModel
	modelName  string
	dimensions int
	limiter    *rate.Limiter
}

// NewGeminiEmbedder creates an embedder. The API key is required.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY for embeddings")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	e := &GeminiEmbedder{
		client:     client,
		model:      client.EmbeddingModel(cfg.Model),
		modelName:  cfg.Model,
		dimensions: cfg.Dimensions,
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return e, nil
}

// Embed returns the unit-normalized embedding of text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("joubun/embedding").Start(ctx, "gemini.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("embedding.model", e.modelName),
		attribute.Int("embedding.text_runes", len([]rune(text))),
	)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		span.SetAttributes(attribute.Bool("embedding.error", true))
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, errors.New("no embedding returned")
	}
	values := resp.Embedding.Values
	if len(values) != e.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(values), e.dimensions)
	}
	out := make([]float32, len(values))
	copy(out, values)
	utils.NormalizeL2(out)
	return out, nil
}

// EmbedBatch calls Embed for each text.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

// Dimensions returns the embedding dimension.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases the client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
