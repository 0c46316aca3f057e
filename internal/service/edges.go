package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/store"
)

// EdgeSynthesizer links entities that occur in the same batch.
type EdgeSynthesizer struct {
	relations domain.RelationStore
	logger    *zap.Logger
}

func NewEdgeSynthesizer(rs domain.RelationStore, logger *zap.Logger) *EdgeSynthesizer {
	return &EdgeSynthesizer{relations: rs, logger: logger}
}

// Synthesize upserts a co_occurs_with edge in both directions for every pair
// of distinct ids. It returns the number of upserts, counting each direction.
func (s *EdgeSynthesizer) Synthesize(ctx context.Context, projectID uuid.UUID, entityIDs []uuid.UUID, prov domain.BatchProvenance) (int, error) {
	ids := distinctIDs(entityIDs)
	if len(ids) < 2 {
		return 0, nil
	}

	now := time.Now().UTC()
	count := 0
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			if err := s.upsert(ctx, projectID, a, b, prov, now); err != nil {
				return count, err
			}
			if err := s.upsert(ctx, projectID, b, a, prov, now); err != nil {
				return count, err
			}
			count += 2
		}
	}

	s.logger.Debug("edges synthesized",
		zap.String("project_id", projectID.String()),
		zap.Int("entities", len(ids)),
		zap.Int("upserts", count))
	return count, nil
}

func (s *EdgeSynthesizer) upsert(ctx context.Context, projectID, from, to uuid.UUID, prov domain.BatchProvenance, now time.Time) error {
	rel, err := s.relations.Get(ctx, projectID, from, to, domain.RelationCoOccursWith)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("get edge %s->%s: %w", from, to, err)
	}

	if rel == nil {
		rel = &domain.Relation{
			ProjectID:      projectID,
			FromID:         from,
			FromKind:       domain.NodeEntity,
			RelationType:   domain.RelationCoOccursWith,
			ToID:           to,
			ToKind:         domain.NodeEntity,
			Confidence:     1.0,
			Strength:       1.0,
			AccessCount:    1,
			LastAccessedAt: &now,
			Provenance:     []domain.BatchProvenance{prov},
		}
		if err := s.relations.Create(ctx, rel); err != nil {
			return fmt.Errorf("create edge %s->%s: %w", from, to, err)
		}
		return nil
	}

	rel.Reinforce(now)
	rel.AppendProvenance(prov)
	if err := s.relations.Update(ctx, rel); err != nil {
		return fmt.Errorf("reinforce edge %s->%s: %w", from, to, err)
	}
	return nil
}

func distinctIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
