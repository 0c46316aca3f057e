package domain

import (
	"time"

	"github.com/google/uuid"
)

type NodeKind string

const (
	NodeEntity    NodeKind = "entity"
	NodeAssertion NodeKind = "assertion"
)

const RelationCoOccursWith = "co_occurs_with"

const (
	// MinStrength is the decay floor. Decay only touches edges above it.
	MinStrength = 0.1
	// MaxStrength caps hebbian growth.
	MaxStrength = 5.0
	// StrengthStep is the hebbian reinforcement increment.
	StrengthStep = 0.1
	// MaxRelationProvenance is how many batch entries a relation keeps.
	MaxRelationProvenance = 10
)

// BatchProvenance tags a relation with the condensation batch that touched it.
type BatchProvenance struct {
	BatchTS string   `json:"batch_ts"`
	ItemIDs []string `json:"item_ids"`
}

type Relation struct {
	ID             uuid.UUID         `json:"id"`
	ProjectID      uuid.UUID         `json:"project_id"`
	FromID         uuid.UUID         `json:"from_id"`
	FromKind       NodeKind          `json:"from_kind"`
	RelationType   string            `json:"relation_type"`
	ToID           uuid.UUID         `json:"to_id"`
	ToKind         NodeKind          `json:"to_kind"`
	Confidence     float64           `json:"confidence"`
	Strength       float64           `json:"strength"`
	AccessCount    int               `json:"access_count"`
	LastAccessedAt *time.Time        `json:"last_accessed_at,omitempty"`
	Provenance     []BatchProvenance `json:"provenance"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Reinforce applies one hebbian step: strength grows by StrengthStep up to MaxStrength.
func (r *Relation) Reinforce(at time.Time) {
	r.Strength = min(r.Strength+StrengthStep, MaxStrength)
	r.AccessCount++
	r.LastAccessedAt = &at
}

// AppendProvenance adds p unless its batch timestamp is already recorded,
// then keeps only the most recent MaxRelationProvenance entries.
func (r *Relation) AppendProvenance(p BatchProvenance) {
	for _, existing := range r.Provenance {
		if existing.BatchTS == p.BatchTS {
			return
		}
	}
	r.Provenance = append(r.Provenance, p)
	if n := len(r.Provenance); n > MaxRelationProvenance {
		r.Provenance = r.Provenance[n-MaxRelationProvenance:]
	}
}
