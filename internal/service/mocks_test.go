package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/store"
)

// mockEntityStore implements domain.EntityStore for testing.
type mockEntityStore struct {
	mu       sync.Mutex
	entities map[uuid.UUID]*domain.Entity
	order    []uuid.UUID
}

func newMockEntityStore() *mockEntityStore {
	return &mockEntityStore{entities: make(map[uuid.UUID]*domain.Entity)}
}

func (m *mockEntityStore) Create(ctx context.Context, e *domain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	now := time.Now().UTC()
	e.FirstSeenAt, e.LastSeenAt = now, now
	cp := *e
	cp.Aliases = append([]string(nil), e.Aliases...)
	m.entities[e.ID] = &cp
	m.order = append(m.order, e.ID)
	return nil
}

func (m *mockEntityStore) GetByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Entity
	for _, id := range m.order {
		e := m.entities[id]
		if e.ProjectID == projectID {
			cp := *e
			cp.Aliases = append([]string(nil), e.Aliases...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *mockEntityStore) UpdateAliases(ctx context.Context, id uuid.UUID, aliases []string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Aliases = append([]string(nil), aliases...)
	e.LastSeenAt = seenAt
	return nil
}

func (m *mockEntityStore) TouchLastSeen(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if e, ok := m.entities[id]; ok && e.ProjectID == projectID {
			e.LastSeenAt = at
			n++
		}
	}
	return n, nil
}

// mockAssertionStore implements domain.AssertionStore and domain.FactWriter.
type mockAssertionStore struct {
	mu         sync.Mutex
	assertions map[uuid.UUID]*domain.Assertion
	policies   []*domain.Policy
	persistErr error
}

func newMockAssertionStore() *mockAssertionStore {
	return &mockAssertionStore{assertions: make(map[uuid.UUID]*domain.Assertion)}
}

func sameKey(a *domain.Assertion, k domain.AssertionKey) bool {
	return a.ProjectID == k.ProjectID &&
		a.Subject.Key() == k.Subject.Key() &&
		a.Predicate == k.Predicate &&
		a.Object.Key() == k.Object.Key() &&
		a.Polarity == k.Polarity
}

func (m *mockAssertionStore) add(a *domain.Assertion) {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	m.assertions[a.ID] = a
}

func (m *mockAssertionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assertion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assertions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAssertionStore) GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.Assertion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Assertion
	for _, id := range ids {
		if a, ok := m.assertions[id]; ok && a.ProjectID == projectID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAssertionStore) FindByKey(ctx context.Context, key domain.AssertionKey) (*domain.Assertion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assertions {
		if sameKey(a, key) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockAssertionStore) Create(ctx context.Context, a *domain.Assertion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(a)
	return nil
}

func (m *mockAssertionStore) Merge(ctx context.Context, id uuid.UUID, mg domain.AssertionMerge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assertions[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Provenance = append(a.Provenance, mg.Provenance...)
	a.Evidence = store.MergeEvidence(a.Evidence, mg.Evidence)
	a.Confidence = max(a.Confidence, mg.Confidence)
	a.InstructionScore = max(a.InstructionScore, mg.InstructionScore)
	a.SafetyScore = max(a.SafetyScore, mg.SafetyScore)
	return nil
}

func (m *mockAssertionStore) List(ctx context.Context, projectID uuid.UUID, f domain.AssertionFilter) ([]domain.Assertion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Assertion
	for _, a := range m.assertions {
		if a.ProjectID != projectID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Subject != "" && !strings.Contains(strings.ToLower(a.Subject.Display()), strings.ToLower(f.Subject)) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockAssertionStore) ListPending(ctx context.Context, projectID uuid.UUID, f domain.PendingFilter) ([]domain.Assertion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Assertion
	for _, a := range m.assertions {
		if a.ProjectID == projectID && a.Status == domain.StatusPendingReview &&
			a.InstructionScore >= f.MinInstructionScore && a.SafetyScore >= f.MinSafetyScore {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAssertionStore) Review(ctx context.Context, id uuid.UUID, d domain.ReviewDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assertions[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.Status != domain.StatusPendingReview {
		return store.ErrNotPending
	}
	a.Status = d.Status
	reviewer, at := d.ReviewedBy, d.ReviewedAt
	a.ReviewedBy = &reviewer
	a.ReviewedAt = &at
	a.RejectionReason = d.Reason
	return nil
}

func (m *mockAssertionStore) RecordAccess(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if a, ok := m.assertions[id]; ok && a.ProjectID == projectID {
			a.AccessCount++
			a.LastAccessedAt = &at
			n++
		}
	}
	return n, nil
}

func (m *mockAssertionStore) PersistFacts(ctx context.Context, assertions []*domain.Assertion, policies []*domain.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persistErr != nil {
		return m.persistErr
	}
	for _, a := range assertions {
		taken := false
		for _, existing := range m.assertions {
			if sameKey(existing, a.Key()) {
				taken = true
				break
			}
		}
		if !taken {
			m.add(a)
		}
	}
	for _, p := range policies {
		p.ID = uuid.New()
		m.policies = append(m.policies, p)
	}
	return nil
}

func (m *mockAssertionStore) byPredicate(predicate string) []*domain.Assertion {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Assertion
	for _, a := range m.assertions {
		if a.Predicate == predicate {
			out = append(out, a)
		}
	}
	return out
}

// mockRelationStore implements domain.RelationStore for testing.
type mockRelationStore struct {
	mu        sync.Mutex
	relations map[string]*domain.Relation
	getErr    error
}

func newMockRelationStore() *mockRelationStore {
	return &mockRelationStore{relations: make(map[string]*domain.Relation)}
}

func relKey(projectID, from, to uuid.UUID, typ string) string {
	return projectID.String() + "|" + from.String() + "|" + to.String() + "|" + typ
}

func (m *mockRelationStore) put(r *domain.Relation) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.relations[relKey(r.ProjectID, r.FromID, r.ToID, r.RelationType)] = r
}

func (m *mockRelationStore) Get(ctx context.Context, projectID, fromID, toID uuid.UUID, relationType string) (*domain.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.relations[relKey(projectID, fromID, toID, relationType)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	cp.Provenance = append([]domain.BatchProvenance(nil), r.Provenance...)
	return &cp, nil
}

func (m *mockRelationStore) Create(ctx context.Context, r *domain.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.put(&cp)
	r.ID = cp.ID
	return nil
}

func (m *mockRelationStore) Update(ctx context.Context, r *domain.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := relKey(r.ProjectID, r.FromID, r.ToID, r.RelationType)
	if _, ok := m.relations[k]; !ok {
		return store.ErrNotFound
	}
	cp := *r
	m.relations[k] = &cp
	return nil
}

func (m *mockRelationStore) ListWithin(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ids) < 2 {
		return nil, nil
	}
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	var out []domain.Relation
	for _, r := range m.relations {
		_, from := set[r.FromID]
		_, to := set[r.ToID]
		if r.ProjectID == projectID && from && to {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRelationStore) ListOutgoing(ctx context.Context, projectID uuid.UUID, fromIDs []uuid.UUID, minStrength float64) ([]domain.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[uuid.UUID]struct{}, len(fromIDs))
	for _, id := range fromIDs {
		set[id] = struct{}{}
	}
	var out []domain.Relation
	for _, r := range m.relations {
		if _, ok := set[r.FromID]; ok && r.ProjectID == projectID && r.Strength > minStrength {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRelationStore) ApplyDecay(ctx context.Context, before time.Time, floor, rate float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.relations {
		if r.LastAccessedAt != nil && r.LastAccessedAt.Before(before) && r.Strength > floor {
			r.Strength -= rate
			n++
		}
	}
	return n, nil
}

func (m *mockRelationStore) strength(projectID, from, to uuid.UUID) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relations[relKey(projectID, from, to, domain.RelationCoOccursWith)]
	if !ok {
		return 0
	}
	return r.Strength
}

// recordingSink keeps every emitted event.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (s *recordingSink) Emit(ev domain.JobEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) last() domain.JobEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}
