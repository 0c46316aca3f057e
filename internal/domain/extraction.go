package domain

import (
	"context"
	"encoding/json"
)

// NERSpan is a single entity mention found by an EntityExtractor.
type NERSpan struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// EntityExtractor finds entity mentions in free text. Implementations may
// return an empty slice when the backing model is unavailable.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]NERSpan, error)
}

// LexicalFilter decides which tokens are too generic to become entities.
type LexicalFilter interface {
	IsStopword(token string) bool
	MinEntityLength() int
}

// ExtractedRef is a subject or object as returned by a language model, before
// it is resolved against canonical entities.
type ExtractedRef struct {
	Type  RefKind `json:"type"`
	Name  string  `json:"name,omitempty"`
	Value string  `json:"value,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare string. A bare string
// has no kind and is resolved against entities by name.
func (r *ExtractedRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ExtractedRef{Name: s}
		return nil
	}
	type plain ExtractedRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ExtractedRef(p)
	return nil
}

func (r ExtractedRef) Text() string {
	if r.Type == RefLiteral {
		return r.Value
	}
	if r.Name != "" {
		return r.Name
	}
	return r.Value
}

type ExtractedAssertion struct {
	Subject    ExtractedRef `json:"subject"`
	Predicate  string       `json:"predicate"`
	Object     ExtractedRef `json:"object"`
	Polarity   int          `json:"polarity"`
	Confidence float64      `json:"confidence"`
	Evidence   []Evidence   `json:"evidence"`
}

type ExtractedPolicy struct {
	Trigger    string      `json:"trigger"`
	Rule       string      `json:"rule"`
	Priority   float64     `json:"priority"`
	Scope      PolicyScope `json:"scope"`
	Confidence float64     `json:"confidence"`
	Evidence   []Evidence  `json:"evidence"`
}

// Bundle is what a language model extracts from one episodic item.
type Bundle struct {
	ItemID     string               `json:"item_id"`
	Entities   []CandidateEntity    `json:"entities"`
	Assertions []ExtractedAssertion `json:"assertions"`
	Policies   []ExtractedPolicy    `json:"policies"`
}

// LanguageModelExtractor is the optional slow extraction path.
type LanguageModelExtractor interface {
	Extract(ctx context.Context, items []EpisodicItem) ([]Bundle, error)
	Model() string
}
