package service

import (
	"strings"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

// Consolidate turns language-model assertions into candidate facts, binding
// subjects and objects to the entities in res.
func Consolidate(bundles []domain.Bundle, res *Resolution) ([]CandidateFact, []domain.ExtractedPolicy) {
	var facts []CandidateFact
	var policies []domain.ExtractedPolicy

	for _, b := range bundles {
		for _, a := range b.Assertions {
			predicate := strings.ToLower(strings.TrimSpace(a.Predicate))
			if predicate == "" {
				continue
			}
			facts = append(facts, CandidateFact{
				Subject:    bindRef(a.Subject, res),
				Predicate:  predicate,
				Object:     bindRef(a.Object, res),
				Polarity:   a.Polarity,
				Confidence: a.Confidence,
				Method:     domain.MethodLLM,
				Evidence:   a.Evidence,
			})
		}
		policies = append(policies, b.Policies...)
	}
	return facts, policies
}

// bindRef resolves an extracted reference. Literals stay literal; entity
// names and untyped strings become entity refs when they resolve.
func bindRef(r domain.ExtractedRef, res *Resolution) domain.Ref {
	text := strings.TrimSpace(r.Text())
	switch r.Type {
	case domain.RefLiteral:
		return domain.LiteralRef(text)
	default:
		return res.Ref(text)
	}
}
