// Package guardrail scores candidate facts for instruction injection and
// unsafe content before they are admitted to the graph.
package guardrail

import "strings"

const (
	DefaultInstructionThreshold = 0.5
	DefaultSafetyThreshold      = 0.7
)

type Result struct {
	InstructionScore   float64  `json:"instruction_score"`
	InstructionMatches []string `json:"instruction_matches"`
	SafetyScore        float64  `json:"safety_score"`
	SafetyMatches      []string `json:"safety_matches"`
	ShouldBlock        bool     `json:"should_block"`
	ShouldFlag         bool     `json:"should_flag"`
}

// Matches returns instruction matches followed by safety matches.
func (r Result) Matches() []string {
	out := make([]string, 0, len(r.InstructionMatches)+len(r.SafetyMatches))
	out = append(out, r.InstructionMatches...)
	return append(out, r.SafetyMatches...)
}

// Reason is the rejection reason recorded for a blocked fact.
func (r Result) Reason() string {
	return "Auto-rejected: " + strings.Join(r.Matches(), ", ")
}

// Engine combines both detectors. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	instruction          *InstructionDetector
	safety               *ContentSafetyFilter
	instructionThreshold float64
	safetyThreshold      float64
}

type Option func(*Engine)

// WithThresholds sets the block thresholds. Negative values keep the
// defaults; zero blocks every text.
func WithThresholds(instruction, safety float64) Option {
	return func(e *Engine) {
		if instruction >= 0 {
			e.instructionThreshold = instruction
		}
		if safety >= 0 {
			e.safetyThreshold = safety
		}
	}
}

func WithPatterns(ps *PatternSet) Option {
	return func(e *Engine) {
		e.instruction = NewInstructionDetector(ps)
		e.safety = NewContentSafetyFilter(ps)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		instruction:          NewInstructionDetector(nil),
		safety:               NewContentSafetyFilter(nil),
		instructionThreshold: DefaultInstructionThreshold,
		safetyThreshold:      DefaultSafetyThreshold,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Check(text string) Result {
	is, im := e.instruction.Detect(text)
	ss, sm := e.safety.Detect(text)

	return Result{
		InstructionScore:   is,
		InstructionMatches: im,
		SafetyScore:        ss,
		SafetyMatches:      sm,
		ShouldBlock:        is >= e.instructionThreshold || ss >= e.safetyThreshold,
		ShouldFlag:         is >= e.instructionThreshold*0.5 || ss >= e.safetyThreshold*0.5,
	}
}

func (e *Engine) Thresholds() (instruction, safety float64) {
	return e.instructionThreshold, e.safetyThreshold
}

// Open builds an engine from an optional YAML patterns file. An empty path
// uses the built-in patterns.
func Open(patternsFile string, instruction, safety float64) (*Engine, error) {
	opts := []Option{WithThresholds(instruction, safety)}
	if patternsFile != "" {
		ps, err := LoadPatterns(patternsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPatterns(ps))
	}
	return NewEngine(opts...), nil
}
