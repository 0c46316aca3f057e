package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/guardrail"
	"github.com/Harshitk-cp/condensate/internal/provenance"
)

// ModelNone is recorded in envelopes when no language model was involved.
const ModelNone = "none"

// CandidateFact is an assertion before admission.
type CandidateFact struct {
	Subject    domain.Ref
	Predicate  string
	Object     domain.Ref
	Polarity   int
	Confidence float64
	Method     string
	Evidence   []domain.Evidence
}

func (f CandidateFact) Key(projectID uuid.UUID) domain.AssertionKey {
	return domain.AssertionKey{
		ProjectID: projectID,
		Subject:   f.Subject,
		Predicate: f.Predicate,
		Object:    f.Object,
		Polarity:  f.Polarity,
	}
}

func (f CandidateFact) Render() string {
	return f.Subject.Display() + " " + f.Predicate + " " + f.Object.Display()
}

// Admitter scores candidate facts, decides their review status and signs
// their provenance.
type Admitter struct {
	guard  *guardrail.Engine
	signer *provenance.Signer
	mode   domain.ReviewMode
	model  string
}

func NewAdmitter(guard *guardrail.Engine, signer *provenance.Signer, mode domain.ReviewMode, model string) *Admitter {
	if model == "" {
		model = ModelNone
	}
	return &Admitter{guard: guard, signer: signer, mode: mode, model: model}
}

func (a *Admitter) Mode() domain.ReviewMode {
	return a.mode
}

// Status maps a guardrail result onto a review status. Blocked facts are
// always rejected. In auto mode language-model facts become active and
// deterministic ones approved.
func (a *Admitter) Status(method string, res guardrail.Result) (domain.AssertionStatus, *string) {
	if res.ShouldBlock {
		reason := res.Reason()
		return domain.StatusRejected, &reason
	}
	if a.mode == domain.ReviewAuto {
		if method == domain.MethodLLM {
			return domain.StatusActive, nil
		}
		return domain.StatusApproved, nil
	}
	return domain.StatusPendingReview, nil
}

// Admit builds the assertion for f. Only signing can fail.
func (a *Admitter) Admit(projectID uuid.UUID, f CandidateFact, inputs []string, at time.Time) (*domain.Assertion, guardrail.Result, error) {
	res := a.guard.Check(f.Render())
	status, reason := a.Status(f.Method, res)

	env, err := a.envelope(f.Method, inputs, at)
	if err != nil {
		return nil, res, err
	}

	polarity := f.Polarity
	if polarity != -1 {
		polarity = 1
	}

	return &domain.Assertion{
		ProjectID:        projectID,
		Subject:          f.Subject,
		Predicate:        f.Predicate,
		Object:           f.Object,
		Polarity:         polarity,
		Confidence:       f.Confidence,
		Status:           status,
		RejectionReason:  reason,
		InstructionScore: res.InstructionScore,
		SafetyScore:      res.SafetyScore,
		Provenance:       []domain.ProofEnvelope{env},
		Evidence:         f.Evidence,
		Strength:         1.0,
		AccessCount:      0,
	}, res, nil
}

// AdmitPolicy signs an extracted policy.
func (a *Admitter) AdmitPolicy(projectID uuid.UUID, p domain.ExtractedPolicy, inputs []string, at time.Time) (*domain.Policy, error) {
	env, err := a.envelope(domain.MethodLLM, inputs, at)
	if err != nil {
		return nil, err
	}
	return &domain.Policy{
		ProjectID:  projectID,
		Trigger:    strings.TrimSpace(p.Trigger),
		Rule:       strings.TrimSpace(p.Rule),
		Priority:   p.Priority,
		Scope:      p.Scope,
		Confidence: p.Confidence,
		Provenance: []domain.ProofEnvelope{env},
	}, nil
}

func (a *Admitter) envelope(method string, inputs []string, at time.Time) (domain.ProofEnvelope, error) {
	model := ModelNone
	if method == domain.MethodLLM {
		model = a.model
	}
	env, err := a.signer.Sign(provenance.Build(method, model, inputs, at))
	if err != nil {
		return domain.ProofEnvelope{}, fmt.Errorf("sign envelope: %w", err)
	}
	return env, nil
}
