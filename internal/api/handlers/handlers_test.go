package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/api/middleware"
	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/service"
	"github.com/Harshitk-cp/condensate/internal/store"
)

type mockTenantStore struct {
	mu      sync.Mutex
	tenants map[string]*domain.Tenant
}

func (m *mockTenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	m.tenants[t.APIKeyHash] = t
	return nil
}

func (m *mockTenantStore) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

type mockProjectStore struct {
	projects map[uuid.UUID]*domain.Project
}

func (m *mockProjectStore) Create(ctx context.Context, p *domain.Project) error {
	p.ID = uuid.New()
	m.projects[p.ID] = p
	return nil
}

func (m *mockProjectStore) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*domain.Project, error) {
	p, ok := m.projects[id]
	if !ok || p.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *mockProjectStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range m.projects {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockEpisodeStore struct {
	items map[uuid.UUID]domain.EpisodicItem
}

func (m *mockEpisodeStore) Create(ctx context.Context, it *domain.EpisodicItem) error {
	it.ID = uuid.New()
	m.items[it.ID] = *it
	return nil
}

func (m *mockEpisodeStore) GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.EpisodicItem, error) {
	var out []domain.EpisodicItem
	for _, id := range ids {
		if it, ok := m.items[id]; ok && it.ProjectID == projectID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockEpisodeStore) ListRecent(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.EpisodicItem, error) {
	return nil, nil
}

// mockAssertionStore implements the review path. Graph methods are unused.
type mockAssertionStore struct {
	assertions map[uuid.UUID]*domain.Assertion
}

func (m *mockAssertionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assertion, error) {
	a, ok := m.assertions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAssertionStore) GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.Assertion, error) {
	return nil, nil
}

func (m *mockAssertionStore) FindByKey(ctx context.Context, key domain.AssertionKey) (*domain.Assertion, error) {
	return nil, store.ErrNotFound
}

func (m *mockAssertionStore) Create(ctx context.Context, a *domain.Assertion) error { return nil }

func (m *mockAssertionStore) Merge(ctx context.Context, id uuid.UUID, mg domain.AssertionMerge) error {
	return nil
}

func (m *mockAssertionStore) List(ctx context.Context, projectID uuid.UUID, f domain.AssertionFilter) ([]domain.Assertion, error) {
	return nil, nil
}

func (m *mockAssertionStore) ListPending(ctx context.Context, projectID uuid.UUID, f domain.PendingFilter) ([]domain.Assertion, error) {
	var out []domain.Assertion
	for _, a := range m.assertions {
		if a.ProjectID == projectID && a.Status == domain.StatusPendingReview && a.InstructionScore >= f.MinInstructionScore {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAssertionStore) Review(ctx context.Context, id uuid.UUID, d domain.ReviewDecision) error {
	a, ok := m.assertions[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.Status != domain.StatusPendingReview {
		return store.ErrNotPending
	}
	a.Status = d.Status
	a.ReviewedBy = &d.ReviewedBy
	a.ReviewedAt = &d.ReviewedAt
	a.RejectionReason = d.Reason
	return nil
}

func (m *mockAssertionStore) RecordAccess(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	return 0, nil
}

type fakeCondenser struct {
	calls int
	err   error
}

func (f *fakeCondenser) Condense(ctx context.Context, projectID uuid.UUID, items []domain.EpisodicItem) (*service.CondenseResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &service.CondenseResult{Strategy: service.StrategyDeterministic, Admitted: len(items)}, nil
}

type fakeJobLog struct {
	events []domain.JobEvent
}

func (f *fakeJobLog) Recent(n int) []domain.JobEvent {
	if n < len(f.events) {
		return f.events[:n]
	}
	return f.events
}

func (f *fakeJobLog) Dropped() int64 { return 3 }

type fixture struct {
	tenant     *domain.Tenant
	project    *domain.Project
	projects   *mockProjectStore
	assertions *mockAssertionStore
	condenser  *fakeCondenser
	router     chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tenant := &domain.Tenant{ID: uuid.New(), Name: "acme"}
	project := &domain.Project{ID: uuid.New(), TenantID: tenant.ID, Name: "p"}
	f := &fixture{
		tenant:     tenant,
		project:    project,
		projects:   &mockProjectStore{projects: map[uuid.UUID]*domain.Project{project.ID: project}},
		assertions: &mockAssertionStore{assertions: map[uuid.UUID]*domain.Assertion{}},
		condenser:  &fakeCondenser{},
	}

	logger := zap.NewNop()
	episodes := service.NewEpisodeService(&mockEpisodeStore{items: map[uuid.UUID]domain.EpisodicItem{}}, logger)
	review := NewReviewHandler(f.projects, service.NewReviewService(f.assertions, logger))
	ingest := NewEpisodeHandler(f.projects, episodes, f.condenser, logger)
	projects := NewProjectHandler(f.projects)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithTenant(r.Context(), tenant)))
		})
	})
	r.Post("/projects", projects.Create)
	r.Get("/projects/{projectID}", projects.Get)
	r.Post("/projects/{projectID}/episodes", ingest.Ingest)
	r.Get("/projects/{projectID}/review/pending", review.ListPending)
	r.Post("/projects/{projectID}/review/bulk-approve", review.BulkApprove)
	r.Post("/projects/{projectID}/review/{id}/approve", review.Approve)
	r.Post("/projects/{projectID}/review/{id}/reject", review.Reject)
	f.router = r
	return f
}

func (f *fixture) pending(score float64) *domain.Assertion {
	a := &domain.Assertion{
		ID:               uuid.New(),
		ProjectID:        f.project.ID,
		Predicate:        "uses",
		Status:           domain.StatusPendingReview,
		InstructionScore: score,
	}
	f.assertions.assertions[a.ID] = a
	return a
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body == nil {
		req.ContentLength = 0
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) base() string {
	return "/projects/" + f.project.ID.String()
}

func TestTenantCreate(t *testing.T) {
	ts := &mockTenantStore{tenants: map[string]*domain.Tenant{}}
	h := NewTenantHandler(ts)

	t.Run("returns key once and stores its hash", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants", bytes.NewBufferString(`{"name":" acme "}`))
		rec := httptest.NewRecorder()
		h.Create(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp createTenantResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "acme", resp.Name)
		assert.Regexp(t, `^cnd_[0-9a-f]{64}$`, resp.APIKey)

		stored, err := ts.GetByAPIKeyHash(context.Background(), middleware.HashAPIKey(resp.APIKey))
		require.NoError(t, err)
		assert.Equal(t, resp.ID, stored.ID.String())
	})

	t.Run("blank name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants", bytes.NewBufferString(`{"name":"  "}`))
		rec := httptest.NewRecorder()
		h.Create(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProjectScope(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, f.base(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/projects/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	other := &domain.Project{ID: uuid.New(), TenantID: uuid.New(), Name: "theirs"}
	f.projects.projects[other.ID] = other
	rec = f.do(t, http.MethodGet, "/projects/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngest(t *testing.T) {
	t.Run("stores and condenses", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, f.base()+"/episodes", map[string]any{
			"items": []map[string]string{
				{"text": "Alice uses Vim", "source": "slack"},
				{"text": "Bob uses Emacs", "occurred_at": "2026-01-02T03:04:05Z"},
			},
			"condense": true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp ingestResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Items, 2)
		assert.Equal(t, "slack", resp.Items[0].Source)
		assert.Equal(t, 2026, resp.Items[1].OccurredAt.Year())
		require.NotNil(t, resp.Condense)
		assert.Equal(t, 2, resp.Condense.Admitted)
		assert.Equal(t, 1, f.condenser.calls)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name string
			body any
		}{
			{"no items", map[string]any{"items": []any{}}},
			{"blank text", map[string]any{"items": []map[string]string{{"text": "ok"}, {"text": " "}}}},
			{"bad timestamp", map[string]any{"items": []map[string]string{{"text": "x", "occurred_at": "yesterday"}}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.do(t, http.MethodPost, f.base()+"/episodes", tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
		assert.Zero(t, f.condenser.calls)
	})

	t.Run("persistence failure maps to 500", func(t *testing.T) {
		f := newFixture(t)
		f.condenser.err = &service.StageError{Stage: service.StagePersistence, Err: assert.AnError}
		rec := f.do(t, http.MethodPost, f.base()+"/episodes", map[string]any{
			"items":    []map[string]string{{"text": "Alice uses Vim"}},
			"condense": true,
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestReviewEndpoints(t *testing.T) {
	t.Run("list pending filters by score", func(t *testing.T) {
		f := newFixture(t)
		f.pending(0.1)
		high := f.pending(0.4)

		rec := f.do(t, http.MethodGet, f.base()+"/review/pending?min_instruction_score=0.3", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []domain.Assertion
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, high.ID, got[0].ID)
	})

	t.Run("approve then conflict", func(t *testing.T) {
		f := newFixture(t)
		a := f.pending(0)

		rec := f.do(t, http.MethodPost, f.base()+"/review/"+a.ID.String()+"/approve", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got domain.Assertion
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, domain.StatusApproved, got.Status)
		require.NotNil(t, got.ReviewedBy)
		assert.Equal(t, service.DefaultReviewer, *got.ReviewedBy)

		rec = f.do(t, http.MethodPost, f.base()+"/review/"+a.ID.String()+"/approve", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("reject requires reason", func(t *testing.T) {
		f := newFixture(t)
		a := f.pending(0)

		rec := f.do(t, http.MethodPost, f.base()+"/review/"+a.ID.String()+"/reject", map[string]string{"reviewer": "sam"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodPost, f.base()+"/review/"+a.ID.String()+"/reject", map[string]string{"reviewer": "sam", "reason": "wrong"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.StatusRejected, f.assertions.assertions[a.ID].Status)
		assert.Equal(t, "wrong", *f.assertions.assertions[a.ID].RejectionReason)
	})

	t.Run("other project's assertion is not found", func(t *testing.T) {
		f := newFixture(t)
		a := f.pending(0)
		a.ProjectID = uuid.New()

		rec := f.do(t, http.MethodPost, f.base()+"/review/"+a.ID.String()+"/approve", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, domain.StatusPendingReview, a.Status)
	})

	t.Run("bulk approve reports per-id errors", func(t *testing.T) {
		f := newFixture(t)
		a1 := f.pending(0)
		a2 := f.pending(0)
		a2.Status = domain.StatusApproved

		rec := f.do(t, http.MethodPost, f.base()+"/review/bulk-approve", map[string]any{
			"ids": []string{a1.ID.String(), a2.ID.String(), "junk", uuid.NewString()},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var res service.BulkApproveResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.Equal(t, 1, res.ApprovedCount)
		assert.Equal(t, 4, res.TotalRequested)
		assert.Len(t, res.Errors, 3)
	})
}

func TestJobsList(t *testing.T) {
	log := &fakeJobLog{events: []domain.JobEvent{
		{JobID: uuid.New(), Name: "condense", Status: domain.JobSuccess},
		{JobID: uuid.New(), Name: "decay", Status: domain.JobError, Error: "boom"},
	}}
	h := NewJobsHandler(log)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp jobsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Jobs, 1)
	assert.Equal(t, int64(3), resp.Dropped)
}
