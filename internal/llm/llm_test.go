package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

func TestParseBundle(t *testing.T) {
	t.Run("blank content is an empty bundle", func(t *testing.T) {
		b, err := ParseBundle("item-1", "   ")
		require.NoError(t, err)
		assert.Equal(t, "item-1", b.ItemID)
		assert.Empty(t, b.Entities)
		assert.Empty(t, b.Assertions)
	})

	t.Run("unparsable content is an error", func(t *testing.T) {
		_, err := ParseBundle("item-1", "not json at all")
		assert.Error(t, err)
	})

	t.Run("fenced output with defaults", func(t *testing.T) {
		content := "```json\n" + `{
			"entities": [{"name": "Bob Smith", "type": "PER", "confidence": 0.9}, {"name": " ", "type": "org"}],
			"assertions": [
				{"subject": {"type": "entity", "name": "Bob Smith"}, "predicate": "uses",
				 "object": {"type": "literal", "value": "Vim"}, "confidence": 1.4},
				{"subject": "Bob Smith", "predicate": "dislikes", "object": "Emacs", "polarity": -1, "confidence": 0.5}
			],
			"policies": [{"trigger": "deploy", "rule": "Run tests first", "priority": 0.8, "scope": "team", "confidence": 0.7}]
		}` + "\n```"

		b, err := ParseBundle("item-1", content)
		require.NoError(t, err)

		require.Len(t, b.Entities, 1)
		assert.Equal(t, domain.EntityPerson, b.Entities[0].Type)

		require.Len(t, b.Assertions, 2)
		first := b.Assertions[0]
		assert.Equal(t, 1, first.Polarity)
		assert.Equal(t, 1.0, first.Confidence)
		assert.Equal(t, domain.RefLiteral, first.Object.Type)
		assert.Equal(t, "Vim", first.Object.Text())
		assert.Equal(t, []domain.Evidence{{EpisodicID: "item-1", Quote: "Derived from item"}}, first.Evidence)

		second := b.Assertions[1]
		assert.Equal(t, -1, second.Polarity)
		assert.Equal(t, domain.RefKind(""), second.Subject.Type)
		assert.Equal(t, "Bob Smith", second.Subject.Text())

		require.Len(t, b.Policies, 1)
		assert.Equal(t, domain.ScopeProject, b.Policies[0].Scope)
		assert.Equal(t, 0.8, b.Policies[0].Priority)
	})

	t.Run("long quotes are truncated", func(t *testing.T) {
		quote := strings.Repeat("é", 300)
		content := `{"assertions": [{"subject": "a", "predicate": "p", "object": "b", "confidence": 1,
			"evidence": [{"quote": "` + quote + `"}]}]}`

		b, err := ParseBundle("item-9", content)
		require.NoError(t, err)
		require.Len(t, b.Assertions, 1)
		ev := b.Assertions[0].Evidence[0]
		assert.Equal(t, "item-9", ev.EpisodicID)
		assert.Len(t, []rune(ev.Quote), MaxQuoteLength)
	})
}

func chatResponse(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "phi3",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	require.NoError(t, err)
	return body
}

func TestOpenAIExtractor(t *testing.T) {
	items := []domain.EpisodicItem{
		{ID: uuid.New(), Text: "item-bob uses Vim"},
		{ID: uuid.New(), Text: "item-broken"},
		{ID: uuid.New(), Text: "item-alice leads Platform"},
	}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Messages, 2) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "phi3", req.Model)

		user := req.Messages[1].Content
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(user, "item-broken"):
			_, _ = w.Write(chatResponse(t, "I cannot do that"))
		case strings.Contains(user, "item-bob"):
			_, _ = w.Write(chatResponse(t, `{"entities":[{"name":"Bob","type":"person","confidence":0.9}]}`))
		default:
			_, _ = w.Write(chatResponse(t, "```json\n{\"entities\":[{\"name\":\"Alice\",\"type\":\"human\",\"confidence\":0.8}]}\n```"))
		}
	}))
	defer srv.Close()

	ex := NewOpenAIExtractor(srv.URL+"/v1", "", "phi3", 2, zap.NewNop())
	bundles, err := ex.Extract(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, bundles, 2)
	assert.Equal(t, items[0].ID.String(), bundles[0].ItemID)
	assert.Equal(t, items[2].ID.String(), bundles[1].ItemID)
	assert.Equal(t, domain.EntityPerson, bundles[1].Entities[0].Type)
	assert.Equal(t, "phi3", ex.Model())
}

func TestOpenAIExtractorAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ex := NewOpenAIExtractor(srv.URL, "", "phi3", 4, zap.NewNop())
	_, err := ex.Extract(context.Background(), []domain.EpisodicItem{{ID: uuid.New(), Text: "x"}})
	assert.ErrorIs(t, err, ErrNoBundles)
}

func TestNewExtractor(t *testing.T) {
	ex, err := NewExtractor(Settings{Provider: ProviderMock, Model: "m1"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "m1", ex.Model())

	_, err = NewExtractor(Settings{Provider: "bard"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewExtractor(Settings{Provider: ProviderOpenAI}, zap.NewNop())
	assert.Error(t, err)
}
