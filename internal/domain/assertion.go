package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AssertionStatus string

const (
	StatusPendingReview AssertionStatus = "pending_review"
	StatusApproved      AssertionStatus = "approved"
	StatusRejected      AssertionStatus = "rejected"
	StatusActive        AssertionStatus = "active"
)

func ValidAssertionStatus(s string) bool {
	switch AssertionStatus(s) {
	case StatusPendingReview, StatusApproved, StatusRejected, StatusActive:
		return true
	}
	return false
}

// ReviewMode is the admission policy applied when an assertion is created.
type ReviewMode string

const (
	ReviewManual ReviewMode = "manual"
	ReviewAuto   ReviewMode = "auto"
)

// ParseReviewMode falls back to manual for anything but "auto".
func ParseReviewMode(s string) ReviewMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ReviewAuto)) {
		return ReviewAuto
	}
	return ReviewManual
}

// Evidence cites the episodic item a language-model assertion was drawn from.
type Evidence struct {
	EpisodicID string `json:"episodic_id"`
	Quote      string `json:"quote"`
}

type Assertion struct {
	ID               uuid.UUID       `json:"id"`
	ProjectID        uuid.UUID       `json:"project_id"`
	Subject          Ref             `json:"subject"`
	Predicate        string          `json:"predicate"`
	Object           Ref             `json:"object"`
	Polarity         int             `json:"polarity"`
	Confidence       float64         `json:"confidence"`
	Status           AssertionStatus `json:"status"`
	ReviewedBy       *string         `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time      `json:"reviewed_at,omitempty"`
	RejectionReason  *string         `json:"rejection_reason,omitempty"`
	InstructionScore float64         `json:"instruction_score"`
	SafetyScore      float64         `json:"safety_score"`
	Provenance       []ProofEnvelope `json:"provenance"`
	Evidence         []Evidence      `json:"evidence,omitempty"`
	Strength         float64         `json:"strength"`
	AccessCount      int             `json:"access_count"`
	LastAccessedAt   *time.Time      `json:"last_accessed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Key returns the assertion's uniqueness key.
func (a *Assertion) Key() AssertionKey {
	return AssertionKey{
		ProjectID: a.ProjectID,
		Subject:   a.Subject,
		Predicate: a.Predicate,
		Object:    a.Object,
		Polarity:  a.Polarity,
	}
}

// Render is the text guardrails are run against.
func (a *Assertion) Render() string {
	return a.Subject.Display() + " " + a.Predicate + " " + a.Object.Display()
}

type AssertionKey struct {
	ProjectID uuid.UUID
	Subject   Ref
	Predicate string
	Object    Ref
	Polarity  int
}

// AssertionFilter narrows graph listings. Subject matches case-insensitively
// as a substring of the subject display text.
type AssertionFilter struct {
	Subject string
	Status  AssertionStatus
	Limit   int
}

// PendingFilter narrows the review queue.
type PendingFilter struct {
	MinInstructionScore float64
	MinSafetyScore      float64
	Limit               int
	Offset              int
}

// ReviewDecision moves a pending assertion to a terminal state.
type ReviewDecision struct {
	Status     AssertionStatus
	ReviewedBy string
	ReviewedAt time.Time
	Reason     *string
}

// AssertionMerge carries what a duplicate contributes to an existing assertion.
type AssertionMerge struct {
	Confidence       float64
	InstructionScore float64
	SafetyScore      float64
	Provenance       []ProofEnvelope
	Evidence         []Evidence
}
