// Package lexical decides which tokens are too generic to become entities.
package lexical

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MinEntityLength is the shortest heuristic entity kept.
const MinEntityLength = 3

// DefaultCorpusURL is the stopwords-iso English list.
const DefaultCorpusURL = "https://raw.githubusercontent.com/stopwords-iso/stopwords-en/master/stopwords-en.txt"

var fallbackWords = []string{
	"a", "an", "the", "and", "or", "but", "in", "on",
	"at", "to", "for", "of", "with", "by", "from", "is",
	"are", "was", "were", "be", "been", "being", "have",
	"has", "had", "do", "does", "did", "will", "would",
	"could", "should", "may", "might", "shall", "can",
	"i", "you", "he", "she", "it", "we", "they", "this", "that",
}

// programmingNoise never appears in natural-language corpora but floods a
// graph built from code-heavy conversations.
var programmingNoise = []string{
	"none", "true", "false", "self", "cls", "return", "yield",
	"import", "class", "def", "async", "await",
	"try", "except", "finally", "raise", "pass", "break", "continue",
	"print", "len", "str", "int", "float", "bool",
	"dict", "set", "tuple", "object", "super", "property", "staticmethod",
	"b", "db", "os", "src", "rel", "app", "math", "uuid",
	"log", "data", "item", "items", "result", "results",
	"value", "values", "key", "keys", "names",
	"info", "error", "warning", "debug", "message", "msg",
	"types", "kind", "mode", "state", "status", "flag",
	"count", "total", "size", "index", "limit", "offset",
	"begin", "step",
	"min", "max", "avg", "sum",
	"url", "uri", "host", "port",
	"node", "edge", "graph", "tree", "root",
	"folder", "config", "env",
	"request", "response", "handler",
	"query", "filter", "sort", "order", "group",
	"test", "tests", "mock", "stub", "fixture",
	"session", "engine", "model", "schema",
	"table", "column", "row", "record", "field",
	"system", "concept", "artifact", "project", "tool",
	"localhost", "null",
}

// TechTerms are high-signal technical words the deterministic extractor
// always looks for.
var TechTerms = []string{
	"fastapi", "pydantic", "sqlalchemy", "qdrant",
	"gliner", "ollama", "phi3", "gpt-4",
	"kubernetes", "docker", "postgres", "postgresql", "redis",
	"oauth", "api", "auth",
	"backend", "frontend",
	"refactoring", "migration", "bottleneck", "latency",
	"roadmap",
}

var techSet = toSet(TechTerms)

func IsTechTerm(s string) bool {
	_, ok := techSet[strings.ToLower(s)]
	return ok
}

// Filter is an immutable stop-word set. It satisfies domain.LexicalFilter.
type Filter struct {
	words map[string]struct{}
}

// New returns a filter over the built-in fallback words plus the
// programming-noise list, extended by extra.
func New(extra ...string) *Filter {
	return newFilter(fallbackWords, extra)
}

func newFilter(base, extra []string) *Filter {
	words := toSet(base)
	for _, w := range programmingNoise {
		words[w] = struct{}{}
	}
	for _, w := range extra {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words[w] = struct{}{}
		}
	}
	return &Filter{words: words}
}

func (f *Filter) IsStopword(token string) bool {
	_, ok := f.words[strings.ToLower(strings.TrimSpace(token))]
	return ok
}

func (f *Filter) MinEntityLength() int {
	return MinEntityLength
}

func (f *Filter) Len() int {
	return len(f.words)
}

// Bootstrap builds a filter from the cached corpus at cachePath. When the
// cache is missing and url is set, the corpus is downloaded and cached. If
// both fail the built-in fallback words are used.
func Bootstrap(ctx context.Context, cachePath, url string, logger *zap.Logger) *Filter {
	if cachePath != "" {
		if words, err := readWords(cachePath); err == nil {
			logger.Info("stop words loaded from cache",
				zap.String("path", cachePath), zap.Int("count", len(words)))
			return newFilter(words, nil)
		}
	}

	if url != "" {
		words, err := fetchWords(ctx, url)
		if err == nil {
			logger.Info("stop words downloaded", zap.String("url", url), zap.Int("count", len(words)))
			if cachePath != "" {
				if err := writeWords(cachePath, words); err != nil {
					logger.Warn("could not cache stop words", zap.String("path", cachePath), zap.Error(err))
				}
			}
			return newFilter(words, nil)
		}
		logger.Warn("stop word download failed", zap.String("url", url), zap.Error(err))
	}

	logger.Warn("using built-in fallback stop words")
	return New()
}

func readWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return scanWords(f)
}

func scanWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if w := strings.ToLower(strings.TrimSpace(sc.Text())); w != "" {
			words = append(words, w)
		}
	}
	return words, sc.Err()
}

func fetchWords(ctx context.Context, url string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create stop word request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stop word request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stop word request: status %d", resp.StatusCode)
	}
	return scanWords(resp.Body)
}

func writeWords(path string, words []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	return os.WriteFile(path, []byte(strings.Join(sorted, "\n")), 0o644)
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
