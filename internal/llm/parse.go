package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

// MaxQuoteLength bounds evidence quotes.
const MaxQuoteLength = 240

const derivedQuote = "Derived from item"

type rawBundle struct {
	Entities   []domain.CandidateEntity    `json:"entities"`
	Assertions []domain.ExtractedAssertion `json:"assertions"`
	Policies   []domain.ExtractedPolicy    `json:"policies"`
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseBundle decodes one model response for itemID. Blank content yields an
// empty bundle.
func ParseBundle(itemID, content string) (domain.Bundle, error) {
	bundle := domain.Bundle{ItemID: itemID}

	content = stripFences(content)
	if content == "" {
		return bundle, nil
	}

	var raw rawBundle
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return bundle, fmt.Errorf("parse extraction result: %w", err)
	}

	for _, e := range raw.Entities {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			continue
		}
		e.Type = domain.NormalizeEntityType(string(e.Type))
		e.Confidence = clamp01(e.Confidence)
		bundle.Entities = append(bundle.Entities, e)
	}

	for _, a := range raw.Assertions {
		if strings.TrimSpace(a.Predicate) == "" || a.Subject.Text() == "" || a.Object.Text() == "" {
			continue
		}
		if a.Polarity != -1 {
			a.Polarity = 1
		}
		a.Confidence = clamp01(a.Confidence)
		a.Evidence = enrichEvidence(a.Evidence, itemID)
		bundle.Assertions = append(bundle.Assertions, a)
	}

	for _, p := range raw.Policies {
		if strings.TrimSpace(p.Rule) == "" {
			continue
		}
		if !domain.ValidPolicyScope(string(p.Scope)) {
			p.Scope = domain.ScopeProject
		}
		p.Priority = clamp01(p.Priority)
		p.Confidence = clamp01(p.Confidence)
		p.Evidence = enrichEvidence(p.Evidence, itemID)
		bundle.Policies = append(bundle.Policies, p)
	}

	return bundle, nil
}

func enrichEvidence(ev []domain.Evidence, itemID string) []domain.Evidence {
	if len(ev) == 0 {
		return []domain.Evidence{{EpisodicID: itemID, Quote: derivedQuote}}
	}
	out := make([]domain.Evidence, 0, len(ev))
	for _, e := range ev {
		if e.EpisodicID == "" {
			e.EpisodicID = itemID
		}
		if r := []rune(e.Quote); len(r) > MaxQuoteLength {
			e.Quote = string(r[:MaxQuoteLength])
		}
		out = append(out, e)
	}
	return out
}

func clamp01(f float64) float64 {
	return max(0, min(f, 1))
}
