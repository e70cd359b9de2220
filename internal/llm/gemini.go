package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the completion model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("language model temporarily unavailable")

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey            string
	Model             string
	Temperature       float32
	MaxOutputTokens   int32
	RequestsPerMinute int
}

// GeminiClient implements TextCompletion with the Google Generative AI API,
// guarded by a rate limiter and a circuit breaker.
type GeminiClient struct {
	client      *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewGeminiClient creates a client. The API key is required.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 3000
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiCompletion",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	rpm := cfg.RequestsPerMinute
	return &GeminiClient{
		client:      client,
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		breaker:     breaker,
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), max(1, rpm/10)),
		logger:      logger,
	}, nil
}

// Complete sends messages as a chat, the last one being the new prompt.
func (c *GeminiClient) Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	ctx, span := otel.Tracer("joubun/llm").Start(ctx, "gemini.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.modelName),
		attribute.Int("llm.messages", len(messages)),
	)
	if len(messages) == 0 {
		return "", errors.New("no messages to complete")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("llm.rate_limited", true))
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.GenerativeModel(c.modelName)
		model.SetTemperature(c.temperature)
		model.SetMaxOutputTokens(c.maxTokens)
		if systemPrompt != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
		}
		chat := model.StartChat()
		last := len(messages) - 1
		for _, m := range messages[:last] {
			chat.History = append(chat.History, &genai.Content{
				Role:  geminiRole(m.Role),
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		}
		resp, err := chat.SendMessage(ctx, genai.Text(messages[last].Content))
		if err != nil {
			return nil, err
		}
		return responseText(resp)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("llm.circuit_breaker_open", true))
			return "", ErrUnavailable
		}
		span.SetAttributes(attribute.Bool("llm.error", true))
		return "", fmt.Errorf("completion failed: %w", err)
	}
	text := result.(string)
	span.SetAttributes(attribute.Int("llm.response_runes", len([]rune(text))))
	return text, nil
}

// Close releases the client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func geminiRole(role string) string {
	if role == RoleAssistant {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from model")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}
