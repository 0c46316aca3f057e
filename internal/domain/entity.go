package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityPerson   EntityType = "person"
	EntityOrg      EntityType = "org"
	EntitySystem   EntityType = "system"
	EntityProject  EntityType = "project"
	EntityTool     EntityType = "tool"
	EntityConcept  EntityType = "concept"
	EntityArtifact EntityType = "artifact"
	EntityOther    EntityType = "other"
)

func ValidEntityType(s string) bool {
	switch EntityType(s) {
	case EntityPerson, EntityOrg, EntitySystem, EntityProject,
		EntityTool, EntityConcept, EntityArtifact, EntityOther:
		return true
	}
	return false
}

// entityLabelAliases maps raw extractor labels onto the canonical entity types.
var entityLabelAliases = map[string]EntityType{
	"per":          EntityPerson,
	"people":       EntityPerson,
	"human":        EntityPerson,
	"individual":   EntityPerson,
	"organization": EntityOrg,
	"organisation": EntityOrg,
	"company":      EntityOrg,
	"loc":          EntityConcept,
	"location":     EntityConcept,
	"place":        EntityConcept,
	"gpe":          EntityConcept,
	"misc":         EntityOther,
	"technology":   EntityTool,
	"software":     EntityTool,
	"library":      EntityTool,
	"framework":    EntityTool,
	"product":      EntityArtifact,
	"version":      EntityArtifact,
	"service":      EntitySystem,
}

// NormalizeEntityType maps an arbitrary label to one of the canonical types.
// Empty labels become concept; anything unrecognised becomes other.
func NormalizeEntityType(label string) EntityType {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return EntityConcept
	}
	if ValidEntityType(l) {
		return EntityType(l)
	}
	if t, ok := entityLabelAliases[l]; ok {
		return t
	}
	return EntityOther
}

type Entity struct {
	ID            uuid.UUID  `json:"id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	Type          EntityType `json:"type"`
	CanonicalName string     `json:"canonical_name"`
	Aliases       []string   `json:"aliases"`
	Confidence    float64    `json:"confidence"`
	FirstSeenAt   time.Time  `json:"first_seen_at"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
}

// CandidateEntity is an unresolved entity mention produced by an extractor.
type CandidateEntity struct {
	Name       string     `json:"name"`
	Type       EntityType `json:"type"`
	Aliases    []string   `json:"aliases,omitempty"`
	Confidence float64    `json:"confidence"`
}
