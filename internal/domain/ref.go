package domain

import (
	"github.com/google/uuid"
)

type RefKind string

const (
	RefEntity  RefKind = "entity"
	RefLiteral RefKind = "literal"
)

// Ref is the subject or object of an assertion: either a resolved entity or
// a literal text value. Construct it with EntityRef or LiteralRef.
type Ref struct {
	Kind     RefKind    `json:"kind"`
	EntityID *uuid.UUID `json:"entity_id,omitempty"`
	Text     string     `json:"text"`
}

// EntityRef points at a canonical entity. display is kept for rendering.
func EntityRef(id uuid.UUID, display string) Ref {
	return Ref{Kind: RefEntity, EntityID: &id, Text: display}
}

func LiteralRef(text string) Ref {
	return Ref{Kind: RefLiteral, Text: text}
}

func (r Ref) IsEntity() bool {
	return r.Kind == RefEntity && r.EntityID != nil
}

// Display is the human-readable form used for guardrail rendering.
func (r Ref) Display() string {
	return r.Text
}

// Key identifies the ref inside the assertion uniqueness key. Entity refs
// compare by id, literal refs by text. An unrecognised kind keys under
// "unknown:" and never matches a valid ref.
func (r Ref) Key() string {
	switch r.Kind {
	case RefEntity:
		if r.EntityID == nil {
			return "entity:"
		}
		return "entity:" + r.EntityID.String()
	case RefLiteral:
		return "literal:" + r.Text
	default:
		return "unknown:" + r.Text
	}
}

func (r Ref) Equal(o Ref) bool {
	return r.Key() == o.Key()
}
