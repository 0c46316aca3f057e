package domain

import (
	"time"

	"github.com/google/uuid"
)

// EpisodicItem is a raw text record. It is written once on ingest and never mutated.
type EpisodicItem struct {
	ID         uuid.UUID `json:"id"`
	ProjectID  uuid.UUID `json:"project_id"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ItemIDs returns the ids of items in order.
func ItemIDs(items []EpisodicItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
