package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

// EpisodeInput is one raw record to ingest.
type EpisodeInput struct {
	Text       string
	Source     string
	OccurredAt *time.Time
}

type EpisodeService struct {
	store  domain.EpisodeStore
	logger *zap.Logger
}

func NewEpisodeService(es domain.EpisodeStore, logger *zap.Logger) *EpisodeService {
	return &EpisodeService{store: es, logger: logger}
}

// Ingest validates every input before storing any of them.
func (s *EpisodeService) Ingest(ctx context.Context, projectID uuid.UUID, inputs []EpisodeInput) ([]domain.EpisodicItem, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, in := range inputs {
		if strings.TrimSpace(in.Text) == "" {
			return nil, ErrEpisodeTextEmpty
		}
	}

	now := time.Now().UTC()
	items := make([]domain.EpisodicItem, 0, len(inputs))
	for i, in := range inputs {
		item := domain.EpisodicItem{
			ProjectID:  projectID,
			Text:       in.Text,
			Source:     strings.TrimSpace(in.Source),
			OccurredAt: now,
		}
		if in.OccurredAt != nil {
			item.OccurredAt = in.OccurredAt.UTC()
		}
		if err := s.store.Create(ctx, &item); err != nil {
			return nil, fmt.Errorf("store episodic item %d: %w", i, err)
		}
		items = append(items, item)
	}

	s.logger.Debug("episodic items ingested",
		zap.String("project_id", projectID.String()),
		zap.Int("count", len(items)))
	return items, nil
}

func (s *EpisodeService) ListRecent(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.EpisodicItem, error) {
	return s.store.ListRecent(ctx, projectID, limit)
}

func (s *EpisodeService) GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.EpisodicItem, error) {
	return s.store.GetByIDs(ctx, projectID, ids)
}
