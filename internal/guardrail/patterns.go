package guardrail

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// PatternFile is the on-disk shape of a pattern override file. Any table
// left empty keeps the built-in default.
type PatternFile struct {
	Injection  []string `yaml:"injection"`
	Imperative string   `yaml:"imperative"`
	Meta       []string `yaml:"meta"`
	Broad      []string `yaml:"broad"`
	System     []string `yaml:"system"`
	Weights    Weights  `yaml:"weights"`
}

type Weights struct {
	Injection  float64 `yaml:"injection"`
	Imperative float64 `yaml:"imperative"`
	Meta       float64 `yaml:"meta"`
	Broad      float64 `yaml:"broad"`
	System     float64 `yaml:"system"`
}

var DefaultWeights = Weights{
	Injection:  0.6,
	Imperative: 0.3,
	Meta:       0.2,
	Broad:      0.3,
	System:     0.4,
}

var (
	defaultInjection = []string{
		`ignore\s+(?:\w+\s+){0,3}(instructions?|rules?|prompts?|guidelines?)`,
		`disregard\s+(?:\w+\s+){0,3}(instructions?|rules?|guidelines?)`,
		`forget\s+(everything|all|previous)`,
		`(always|never)\s+(respond|answer|say|tell|output)`,
		`from\s+now\s+on`,
		`you\s+(must|should|will|are)\s+(always|never|now)`,
		`your\s+new\s+(role|task|purpose|instruction)`,
		`pretend\s+(you\s+are|to\s+be)`,
		`act\s+as\s+(if|a|an)`,
		`override\s+(previous|all|any)`,
	}

	defaultImperative = `^(do|don't|make|create|generate|write|tell|say|respond|answer|output|print|display|show|ignore|forget|disregard|override|change|modify|update|set|enable|disable|turn|activate|deactivate)\s+`

	defaultMeta = []string{
		`you\s+(are|should|must|will)\s+(a|an|the)`,
		`your\s+(purpose|role|task|job)\s+is`,
		`you\s+are\s+designed\s+to`,
	}

	defaultBroad = []string{
		`(always|never|all|every|none)\s+(users?|people|things?|times?)`,
		`(everything|nothing|everyone|no\s+one)`,
		`in\s+all\s+cases`,
		`without\s+exception`,
		`never\s+(allow|permit|let|enable|accept|approve)`,
	}

	defaultSystem = []string{
		`system\s+(should|must|will|shall)\s+(always|never)`,
		`(enable|disable|turn\s+on|turn\s+off)\s+.*\s+(feature|setting|mode)`,
		`configure\s+.*\s+to`,
	}
)

// pattern keeps the source text for match descriptions next to the
// compiled case-insensitive form.
type pattern struct {
	source string
	re     *regexp.Regexp
}

func compile(src string) (pattern, error) {
	re, err := regexp.Compile("(?i)" + src)
	if err != nil {
		return pattern{}, fmt.Errorf("compile pattern %q: %w", src, err)
	}
	return pattern{source: src, re: re}, nil
}

func compileAll(srcs []string) ([]pattern, error) {
	out := make([]pattern, 0, len(srcs))
	for _, s := range srcs {
		p, err := compile(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// PatternSet is a compiled, immutable set of detector tables.
type PatternSet struct {
	injection  []pattern
	imperative pattern
	meta       []pattern
	broad      []pattern
	system     []pattern
	weights    Weights
}

// Compile builds a PatternSet, filling empty tables and zero weights from the defaults.
func (f PatternFile) Compile() (*PatternSet, error) {
	f = f.withDefaults()

	ps := &PatternSet{weights: f.Weights}
	var err error
	if ps.injection, err = compileAll(f.Injection); err != nil {
		return nil, err
	}
	if ps.imperative, err = compile(f.Imperative); err != nil {
		return nil, err
	}
	if ps.meta, err = compileAll(f.Meta); err != nil {
		return nil, err
	}
	if ps.broad, err = compileAll(f.Broad); err != nil {
		return nil, err
	}
	if ps.system, err = compileAll(f.System); err != nil {
		return nil, err
	}
	return ps, nil
}

func (f PatternFile) withDefaults() PatternFile {
	if len(f.Injection) == 0 {
		f.Injection = defaultInjection
	}
	if f.Imperative == "" {
		f.Imperative = defaultImperative
	}
	if len(f.Meta) == 0 {
		f.Meta = defaultMeta
	}
	if len(f.Broad) == 0 {
		f.Broad = defaultBroad
	}
	if len(f.System) == 0 {
		f.System = defaultSystem
	}
	w, d := &f.Weights, DefaultWeights
	if w.Injection <= 0 {
		w.Injection = d.Injection
	}
	if w.Imperative <= 0 {
		w.Imperative = d.Imperative
	}
	if w.Meta <= 0 {
		w.Meta = d.Meta
	}
	if w.Broad <= 0 {
		w.Broad = d.Broad
	}
	if w.System <= 0 {
		w.System = d.System
	}
	return f
}

var (
	defaultOnce sync.Once
	defaultSet  *PatternSet
)

// DefaultPatterns returns the built-in tables, compiled once.
func DefaultPatterns() *PatternSet {
	defaultOnce.Do(func() {
		ps, err := PatternFile{}.Compile()
		if err != nil {
			panic(err)
		}
		defaultSet = ps
	})
	return defaultSet
}

// LoadPatterns reads a YAML override file.
func LoadPatterns(path string) (*PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guardrail patterns: %w", err)
	}
	var f PatternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse guardrail patterns: %w", err)
	}
	return f.Compile()
}
