package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error)
}

type ProjectStore interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Project, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Project, error)
}

type EpisodeStore interface {
	Create(ctx context.Context, item *EpisodicItem) error
	GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]EpisodicItem, error)
	ListRecent(ctx context.Context, projectID uuid.UUID, limit int) ([]EpisodicItem, error)
}

type EntityStore interface {
	Create(ctx context.Context, e *Entity) error
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]Entity, error)
	UpdateAliases(ctx context.Context, id uuid.UUID, aliases []string, seenAt time.Time) error
	TouchLastSeen(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error)
}

type AssertionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Assertion, error)
	GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]Assertion, error)
	FindByKey(ctx context.Context, key AssertionKey) (*Assertion, error)
	Create(ctx context.Context, a *Assertion) error
	Merge(ctx context.Context, id uuid.UUID, m AssertionMerge) error
	List(ctx context.Context, projectID uuid.UUID, f AssertionFilter) ([]Assertion, error)
	ListPending(ctx context.Context, projectID uuid.UUID, f PendingFilter) ([]Assertion, error)
	// Review applies d only when the assertion is still pending_review.
	Review(ctx context.Context, id uuid.UUID, d ReviewDecision) error
	RecordAccess(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error)
}

type RelationStore interface {
	Get(ctx context.Context, projectID, fromID, toID uuid.UUID, relationType string) (*Relation, error)
	Create(ctx context.Context, r *Relation) error
	Update(ctx context.Context, r *Relation) error
	// ListWithin returns relations whose endpoints are both in ids.
	ListWithin(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]Relation, error)
	// ListOutgoing returns relations leaving fromIDs with strength strictly above minStrength.
	ListOutgoing(ctx context.Context, projectID uuid.UUID, fromIDs []uuid.UUID, minStrength float64) ([]Relation, error)
	ApplyDecay(ctx context.Context, before time.Time, floor, rate float64) (int64, error)
}

type PolicyStore interface {
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]Policy, error)
}

// FactWriter persists a batch of admitted facts atomically.
type FactWriter interface {
	PersistFacts(ctx context.Context, assertions []*Assertion, policies []*Policy) error
}
