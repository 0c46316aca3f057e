package domain

import (
	"time"

	"github.com/google/uuid"
)

type PolicyScope string

const (
	ScopeGlobal  PolicyScope = "global"
	ScopeProject PolicyScope = "project"
	ScopeTask    PolicyScope = "task"
)

func ValidPolicyScope(s string) bool {
	switch PolicyScope(s) {
	case ScopeGlobal, ScopeProject, ScopeTask:
		return true
	}
	return false
}

// Policy is an operational rule distilled from episodic items.
type Policy struct {
	ID         uuid.UUID       `json:"id"`
	ProjectID  uuid.UUID       `json:"project_id"`
	Trigger    string          `json:"trigger"`
	Rule       string          `json:"rule"`
	Priority   float64         `json:"priority"`
	Scope      PolicyScope     `json:"scope"`
	Confidence float64         `json:"confidence"`
	Provenance []ProofEnvelope `json:"provenance"`
	CreatedAt  time.Time       `json:"created_at"`
}
