package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

// ErrNoBundles is returned when every item in a batch failed extraction.
var ErrNoBundles = errors.New("llm: no item could be extracted")

// OpenAIExtractor talks to any OpenAI-compatible chat endpoint (OpenAI,
// Ollama, vLLM).
type OpenAIExtractor struct {
	client         *openai.Client
	model          string
	maxConcurrency int
	logger         *zap.Logger
}

func NewOpenAIExtractor(baseURL, apiKey, model string, maxConcurrency int, logger *zap.Logger) *OpenAIExtractor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &OpenAIExtractor{
		client:         openai.NewClientWithConfig(cfg),
		model:          model,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

func (e *OpenAIExtractor) Model() string {
	return e.model
}

// Extract runs one completion per item with at most maxConcurrency in flight.
// Items that fail are logged and left out of the result.
func (e *OpenAIExtractor) Extract(ctx context.Context, items []domain.EpisodicItem) ([]domain.Bundle, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]*domain.Bundle, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for i, item := range items {
		g.Go(func() error {
			content, err := e.complete(gctx, item)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("llm extraction failed",
					zap.String("item_id", item.ID.String()), zap.Error(err))
				return nil
			}

			bundle, err := ParseBundle(item.ID.String(), content)
			if err != nil {
				e.logger.Warn("llm returned unparsable output",
					zap.String("item_id", item.ID.String()), zap.Error(err))
				return nil
			}
			results[i] = &bundle
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundles := make([]domain.Bundle, 0, len(results))
	for _, b := range results {
		if b != nil {
			bundles = append(bundles, *b)
		}
	}
	if len(bundles) == 0 {
		return nil, ErrNoBundles
	}
	return bundles, nil
}

func (e *OpenAIExtractor) complete(ctx context.Context, item domain.EpisodicItem) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(extractPrompt, item.ID, item.Source, item.Text)},
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
