package llm

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

// MockExtractor is a configurable extractor for testing. When Bundles is nil
// it returns one empty bundle per item.
type MockExtractor struct {
	ModelName string
	Bundles   []domain.Bundle
	Err       error

	mu    sync.Mutex
	Calls [][]domain.EpisodicItem
}

func NewMockExtractor() *MockExtractor {
	return &MockExtractor{ModelName: "mock"}
}

func (m *MockExtractor) Model() string {
	return m.ModelName
}

func (m *MockExtractor) Extract(_ context.Context, items []domain.EpisodicItem) ([]domain.Bundle, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, items)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bundles != nil {
		return m.Bundles, nil
	}
	out := make([]domain.Bundle, len(items))
	for i, it := range items {
		out[i] = domain.Bundle{ItemID: it.ID.String()}
	}
	return out, nil
}
