package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Settings configures NewExtractor.
type Settings struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	MaxConcurrency int
}

// NewExtractor creates a language-model extractor for the named provider.
func NewExtractor(s Settings, logger *zap.Logger) (domain.LanguageModelExtractor, error) {
	switch s.Provider {
	case ProviderOpenAI, "":
		if s.BaseURL == "" {
			return nil, fmt.Errorf("LLM_BASE_URL is required for the %s provider", ProviderOpenAI)
		}
		return NewOpenAIExtractor(s.BaseURL, s.APIKey, s.Model, s.MaxConcurrency, logger), nil
	case ProviderMock:
		m := NewMockExtractor()
		if s.Model != "" {
			m.ModelName = s.Model
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, mock)", s.Provider)
	}
}
