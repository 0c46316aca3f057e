// Package ner provides entity extractors: an HTTP client for a
// model-backed NER service and a no-op fallback.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"go.uber.org/zap"
)

const (
	// ChunkSize keeps each request inside a small model's context window.
	ChunkSize    = 1200
	ChunkOverlap = 150
)

// DefaultLabels matches the entity ontology. location is folded into concept
// by domain.NormalizeEntityType.
var DefaultLabels = []string{
	"person", "org", "system", "project",
	"tool", "concept", "artifact", "location",
}

// NoOp finds nothing. It is used when no NER service is configured.
type NoOp struct{}

func (NoOp) Extract(ctx context.Context, text string) ([]domain.NERSpan, error) {
	return []domain.NERSpan{}, nil
}

// ModelBacked calls a NER service over HTTP. Long inputs are split into
// overlapping chunks and the spans merged back.
type ModelBacked struct {
	url        string
	labels     []string
	threshold  float64
	httpClient *http.Client
	logger     *zap.Logger
}

func NewModelBacked(url string, logger *zap.Logger) *ModelBacked {
	return &ModelBacked{
		url:        url,
		labels:     DefaultLabels,
		threshold:  0.5,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type predictRequest struct {
	Text      string   `json:"text"`
	Labels    []string `json:"labels"`
	Threshold float64  `json:"threshold"`
}

type predictResponse struct {
	Entities []domain.NERSpan `json:"entities"`
	Error    string           `json:"error,omitempty"`
}

// Extract never fails the caller because of one bad chunk: chunk errors are
// logged and that chunk contributes nothing. An error is returned only when
// every chunk failed.
func (c *ModelBacked) Extract(ctx context.Context, text string) ([]domain.NERSpan, error) {
	chunks := Chunk(text, ChunkSize, ChunkOverlap)
	if len(chunks) == 0 {
		return []domain.NERSpan{}, nil
	}

	var all []domain.NERSpan
	var lastErr error
	failed := 0
	for _, ch := range chunks {
		spans, err := c.predict(ctx, ch.Text)
		if err != nil {
			failed++
			lastErr = err
			c.logger.Warn("ner chunk failed", zap.Int("offset", ch.Offset), zap.Error(err))
			continue
		}
		for _, s := range spans {
			s.Start += ch.Offset
			s.End += ch.Offset
			all = append(all, s)
		}
	}
	if failed == len(chunks) {
		return nil, fmt.Errorf("ner: all %d chunks failed: %w", failed, lastErr)
	}
	return Merge(all), nil
}

func (c *ModelBacked) predict(ctx context.Context, text string) ([]domain.NERSpan, error) {
	body, err := json.Marshal(predictRequest{Text: text, Labels: c.labels, Threshold: c.threshold})
	if err != nil {
		return nil, fmt.Errorf("marshal ner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ner response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ner service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var pr predictResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, fmt.Errorf("unmarshal ner response: %w", err)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("ner service error: %s", pr.Error)
	}
	return pr.Entities, nil
}

type TextChunk struct {
	Text   string
	Offset int
}

// Chunk splits text into windows of size bytes that overlap by overlap
// bytes. Offsets are byte offsets into text. Boundaries are moved back so
// no rune is split.
func Chunk(text string, size, overlap int) []TextChunk {
	if text == "" {
		return nil
	}
	if overlap >= size {
		overlap = 0
	}
	var out []TextChunk
	start := 0
	for start < len(text) {
		end := min(start+size, len(text))
		for end < len(text) && end > start && !isRuneStart(text[end]) {
			end--
		}
		out = append(out, TextChunk{Text: text[start:end], Offset: start})
		if end == len(text) {
			break
		}
		next := end - overlap
		for next > start && next < len(text) && !isRuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

type spanKey struct {
	start, end int
	label      string
}

// Merge collapses spans with the same (start, end, label), keeping the
// highest score, and orders the result by start offset.
func Merge(spans []domain.NERSpan) []domain.NERSpan {
	best := make(map[spanKey]domain.NERSpan, len(spans))
	for _, s := range spans {
		k := spanKey{s.Start, s.End, s.Label}
		if cur, ok := best[k]; !ok || s.Score > cur.Score {
			best[k] = s
		}
	}
	out := make([]domain.NERSpan, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].End != out[j].End {
			return out[i].End < out[j].End
		}
		return out[i].Label < out[j].Label
	})
	return out
}
