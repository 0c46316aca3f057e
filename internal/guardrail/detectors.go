package guardrail

import "strings"

const imperativePreviewLen = 50

// InstructionDetector scores text for prompt-injection and imperative phrasing.
type InstructionDetector struct {
	patterns *PatternSet
}

func NewInstructionDetector(ps *PatternSet) *InstructionDetector {
	if ps == nil {
		ps = DefaultPatterns()
	}
	return &InstructionDetector{patterns: ps}
}

// Detect returns a score in [0, 1] and a description of every match.
func (d *InstructionDetector) Detect(text string) (float64, []string) {
	if strings.TrimSpace(text) == "" {
		return 0, []string{}
	}

	ps := d.patterns
	score := 0.0
	matches := []string{}

	for _, p := range ps.injection {
		if p.re.MatchString(text) {
			score += ps.weights.Injection
			matches = append(matches, "Injection pattern: "+p.source)
		}
	}

	// The ratio counts every piece of the split, empty ones included.
	sentences := strings.Split(text, ".")
	imperatives := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if ps.imperative.re.MatchString(s) {
			imperatives++
			matches = append(matches, "Imperative verb: "+truncateRunes(s, imperativePreviewLen))
		}
	}
	if imperatives > 0 {
		ratio := min(float64(imperatives)/float64(len(sentences)), 1.0)
		score += ratio * ps.weights.Imperative
	}

	for _, p := range ps.meta {
		if p.re.MatchString(text) {
			score += ps.weights.Meta
			matches = append(matches, "Meta-instruction: "+p.source)
		}
	}

	return min(score, 1.0), matches
}

// ContentSafetyFilter scores text for sweeping claims and system-behavior directives.
type ContentSafetyFilter struct {
	patterns *PatternSet
}

func NewContentSafetyFilter(ps *PatternSet) *ContentSafetyFilter {
	if ps == nil {
		ps = DefaultPatterns()
	}
	return &ContentSafetyFilter{patterns: ps}
}

func (f *ContentSafetyFilter) Detect(text string) (float64, []string) {
	if strings.TrimSpace(text) == "" {
		return 0, []string{}
	}

	ps := f.patterns
	score := 0.0
	matches := []string{}

	for _, p := range ps.broad {
		if p.re.MatchString(text) {
			score += ps.weights.Broad
			matches = append(matches, "Broad assertion: "+p.source)
		}
	}
	for _, p := range ps.system {
		if p.re.MatchString(text) {
			score += ps.weights.System
			matches = append(matches, "System behavior: "+p.source)
		}
	}

	return min(score, 1.0), matches
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
