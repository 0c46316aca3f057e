package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

const (
	// ActivationThreshold is the strength an edge must exceed to propagate activation.
	ActivationThreshold = 0.8

	DefaultDecayRate       = 0.05
	DefaultActivationSteps = 2
	DefaultDecayFactor     = 0.5
)

// CognitiveGraphService maintains relation strength: reinforcement on
// co-activation, spreading activation at query time and periodic decay.
type CognitiveGraphService struct {
	assertions domain.AssertionStore
	entities   domain.EntityStore
	relations  domain.RelationStore
	logger     *zap.Logger
}

func NewCognitiveGraphService(as domain.AssertionStore, es domain.EntityStore, rs domain.RelationStore, logger *zap.Logger) *CognitiveGraphService {
	return &CognitiveGraphService{
		assertions: as,
		entities:   es,
		relations:  rs,
		logger:     logger,
	}
}

// HebbianResult reports what a hebbian update touched.
type HebbianResult struct {
	Assertions int64 `json:"assertions"`
	Entities   int64 `json:"entities"`
	Relations  int   `json:"relations"`
}

// HebbianUpdate strengthens the relations among nodes activated together.
// Assertion ids contribute their subject and object entities to the set.
// Ids belonging to another project are ignored.
func (s *CognitiveGraphService) HebbianUpdate(ctx context.Context, projectID uuid.UUID, nodeIDs []uuid.UUID) (*HebbianResult, error) {
	result := &HebbianResult{}
	ids := distinctIDs(nodeIDs)
	if len(ids) < 2 {
		return result, nil
	}

	now := time.Now().UTC()

	n, err := s.assertions.RecordAccess(ctx, projectID, ids, now)
	if err != nil {
		return nil, fmt.Errorf("record assertion access: %w", err)
	}
	result.Assertions = n

	n, err = s.entities.TouchLastSeen(ctx, projectID, ids, now)
	if err != nil {
		return nil, fmt.Errorf("touch entities: %w", err)
	}
	result.Entities = n

	union := append([]uuid.UUID(nil), ids...)
	if result.Assertions > 0 {
		assertions, err := s.assertions.GetByIDs(ctx, projectID, ids)
		if err != nil {
			return nil, fmt.Errorf("load assertions: %w", err)
		}
		for _, a := range assertions {
			if a.Subject.IsEntity() {
				union = append(union, *a.Subject.EntityID)
			}
			if a.Object.IsEntity() {
				union = append(union, *a.Object.EntityID)
			}
		}
		union = distinctIDs(union)
	}

	rels, err := s.relations.ListWithin(ctx, projectID, union)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	for i := range rels {
		rels[i].Reinforce(now)
		if err := s.relations.Update(ctx, &rels[i]); err != nil {
			return nil, fmt.Errorf("reinforce relation %s: %w", rels[i].ID, err)
		}
	}
	result.Relations = len(rels)

	s.logger.Debug("hebbian update",
		zap.String("project_id", projectID.String()),
		zap.Int("nodes", len(ids)),
		zap.Int("relations", result.Relations))
	return result, nil
}

// ReinforceCoRetrieval is HebbianUpdate applied to items returned together by a query.
func (s *CognitiveGraphService) ReinforceCoRetrieval(ctx context.Context, projectID uuid.UUID, itemIDs []uuid.UUID) (*HebbianResult, error) {
	return s.HebbianUpdate(ctx, projectID, itemIDs)
}

// SpreadingActivation walks outgoing edges stronger than ActivationThreshold
// for at most steps rounds and returns every node reached, seeds included.
// decayFactor is accepted for per-hop weighting but is not applied.
func (s *CognitiveGraphService) SpreadingActivation(ctx context.Context, projectID uuid.UUID, seeds []uuid.UUID, decayFactor float64, steps int) (map[uuid.UUID]struct{}, error) {
	activated := make(map[uuid.UUID]struct{}, len(seeds))
	frontier := make([]uuid.UUID, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := activated[id]; ok {
			continue
		}
		activated[id] = struct{}{}
		frontier = append(frontier, id)
	}

	for step := 0; step < steps && len(frontier) > 0; step++ {
		rels, err := s.relations.ListOutgoing(ctx, projectID, frontier, ActivationThreshold)
		if err != nil {
			return nil, fmt.Errorf("activation step %d: %w", step, err)
		}

		var next []uuid.UUID
		for _, r := range rels {
			if _, ok := activated[r.ToID]; ok {
				continue
			}
			activated[r.ToID] = struct{}{}
			next = append(next, r.ToID)
		}
		frontier = next
	}

	return activated, nil
}

// ApplyActivationDecay subtracts rate from every relation not accessed since
// the run started whose strength is above domain.MinStrength. Strength is not
// re-clamped afterwards and can end below the floor.
func (s *CognitiveGraphService) ApplyActivationDecay(ctx context.Context, rate float64) (int64, error) {
	if rate <= 0 {
		rate = DefaultDecayRate
	}
	n, err := s.relations.ApplyDecay(ctx, time.Now().UTC(), domain.MinStrength, rate)
	if err != nil {
		return 0, fmt.Errorf("apply decay: %w", err)
	}
	return n, nil
}
