package service

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/lexical"
)

const (
	SummarySubject   = "Conversation Batch"
	SummaryPredicate = "summarized_as"
	NoSummaryText    = "No critical state changes detected in ephemeral context."

	heuristicConfidence = 0.8
)

var (
	versionRe     = regexp.MustCompile(`(?i)v\d+\.\d+(?:\.\d+)?`)
	timeRe        = regexp.MustCompile(`(?i)\d+\s?(?:am|pm)`)
	capitalizedRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*\b`)
	codeNoiseRe   = regexp.MustCompile(`[{}()\[\]"\\=@#<>]`)
	speakerRe     = regexp.MustCompile(`(?i)^(USER|AGENT|BOB|ALICE):\s*`)

	actionKeywords = []string{"need to", "prioritize", "focus on", "meeting", "bottleneck"}
)

// DeterministicResult is the output of the network-free extraction path.
type DeterministicResult struct {
	Condensed  string                   `json:"condensed"`
	Entities   []domain.CandidateEntity `json:"entities"`
	SavingsPct int                      `json:"savings_pct"`
}

// DeterministicCondenser extracts entities and a one-line summary with
// regular expressions and keyword rules only.
type DeterministicCondenser struct {
	lexical domain.LexicalFilter
}

func NewDeterministicCondenser(lf domain.LexicalFilter) *DeterministicCondenser {
	return &DeterministicCondenser{lexical: lf}
}

func (c *DeterministicCondenser) Process(text string) *DeterministicResult {
	entities := c.extractEntities(text)
	condensed := summarize(text)

	savings := 0
	if orig := utf8.RuneCountInString(text); orig > 0 {
		cond := utf8.RuneCountInString(condensed)
		savings = max(0, int(float64(orig-cond)/float64(orig)*100))
	}

	return &DeterministicResult{
		Condensed:  condensed,
		Entities:   entities,
		SavingsPct: savings,
	}
}

func (c *DeterministicCondenser) extractEntities(text string) []domain.CandidateEntity {
	var found []string
	versions := make(map[string]struct{})

	for _, v := range versionRe.FindAllString(text, -1) {
		versions[v] = struct{}{}
		found = append(found, v)
	}
	found = append(found, timeRe.FindAllString(text, -1)...)

	for _, m := range capitalizedRe.FindAllString(text, -1) {
		term := c.trimStopwords(m)
		if utf8.RuneCountInString(term) >= c.lexical.MinEntityLength() && !c.lexical.IsStopword(term) {
			found = append(found, term)
		}
	}

	lower := strings.ToLower(text)
	for _, term := range lexical.TechTerms {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}

	clean := found[:0]
	for _, f := range found {
		if !codeNoiseRe.MatchString(f) {
			clean = append(clean, f)
		}
	}

	// Case-insensitive dedup keeping a non-lowercase spelling where one exists.
	sort.SliceStable(clean, func(i, j int) bool {
		return isCased(clean[i]) && !isCased(clean[j])
	})
	seen := make(map[string]struct{}, len(clean))
	var out []domain.CandidateEntity
	for _, term := range clean {
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, domain.CandidateEntity{
			Name:       term,
			Type:       heuristicType(term, versions),
			Aliases:    []string{},
			Confidence: heuristicConfidence,
		})
	}
	return out
}

// trimStopwords drops stop words from both ends of a multi-word term.
func (c *DeterministicCondenser) trimStopwords(term string) string {
	words := strings.Fields(term)
	for len(words) > 0 && c.lexical.IsStopword(words[0]) {
		words = words[1:]
	}
	for len(words) > 0 && c.lexical.IsStopword(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isCased(s string) bool {
	return strings.ToLower(s) != s
}

func heuristicType(term string, versions map[string]struct{}) domain.EntityType {
	if _, ok := versions[term]; ok {
		return domain.EntityArtifact
	}
	lower := strings.ToLower(term)
	for _, marker := range []string{"v", "api", "auth"} {
		if strings.Contains(lower, marker) {
			return domain.EntityArtifact
		}
	}
	if lexical.IsTechTerm(term) {
		return domain.EntityTool
	}
	return domain.EntityConcept
}

func summarize(text string) string {
	var actions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range actionKeywords {
			if strings.Contains(lower, kw) {
				actions = append(actions, strings.TrimSpace(speakerRe.ReplaceAllString(line, "")))
				break
			}
		}
	}
	if len(actions) == 0 {
		return NoSummaryText
	}
	return strings.Join(actions, ". ")
}
