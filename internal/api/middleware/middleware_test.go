package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/store"
)

type mockTenantStore struct {
	byHash map[string]*domain.Tenant
}

func (m *mockTenantStore) Create(ctx context.Context, t *domain.Tenant) error { return nil }

func (m *mockTenantStore) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Tenant, error) {
	t, ok := m.byHash[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func okHandler(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestAPIKeyAuth(t *testing.T) {
	tenant := &domain.Tenant{ID: uuid.New(), Name: "acme"}
	ts := &mockTenantStore{byHash: map[string]*domain.Tenant{HashAPIKey("cnd_good"): tenant}}

	var seen *domain.Tenant
	h := APIKeyAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic cnd_good", http.StatusUnauthorized},
		{"no key", "Bearer ", http.StatusUnauthorized},
		{"unknown key", "Bearer cnd_bad", http.StatusUnauthorized},
		{"valid", "Bearer cnd_good", http.StatusOK},
		{"lowercase scheme", "bearer cnd_good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, tenant.ID, seen.ID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", fromCtx)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("generates when missing or oversized", func(t *testing.T) {
		for _, in := range []string{"", strings.Repeat("x", maxRequestIDLength+1)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if in != "" {
				req.Header.Set(RequestIDHeader, in)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			_, err := uuid.Parse(fromCtx)
			assert.NoError(t, err)
			assert.Equal(t, fromCtx, rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("per client burst", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 2)
		h := rl.Middleware(http.HandlerFunc(okHandler))

		codes := func(addr string) int {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec.Code
		}

		assert.Equal(t, http.StatusOK, codes("10.0.0.1:1111"))
		assert.Equal(t, http.StatusOK, codes("10.0.0.1:2222"))
		assert.Equal(t, http.StatusTooManyRequests, codes("10.0.0.1:3333"), "port does not make a new client")
		assert.Equal(t, http.StatusOK, codes("10.0.0.2:1111"))
		assert.Equal(t, 2, rl.Len())
	})

	t.Run("cleanup drops idle clients", func(t *testing.T) {
		rl := NewRateLimiter(10, 10)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		rl.now = func() time.Time { return now }

		rl.Allow("old")
		now = now.Add(time.Hour)
		rl.Allow("fresh")

		assert.Equal(t, 1, rl.Cleanup(30*time.Minute))
		assert.Equal(t, 1, rl.Len())
	})
}

func TestLoggingLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusBadGateway} {
		h := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("body"))
		})))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x?y=1", nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "y=1", fields["query"])
	assert.Equal(t, int64(4), fields["bytes"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestMetricsCollector(t *testing.T) {
	var reqs, errs atomic.Int64
	mc := NewMetricsCollector(&reqs, &errs)

	r := chi.NewRouter()
	r.Use(mc.Middleware)
	r.Get("/ok", okHandler)
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/fail", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, int64(3), reqs.Load())
	assert.Equal(t, int64(2), errs.Load())
}
