package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

func pendingAssertion(t *testing.T, as *mockAssertionStore, projectID uuid.UUID, object string) *domain.Assertion {
	t.Helper()
	a := &domain.Assertion{
		ProjectID: projectID,
		Subject:   domain.LiteralRef("Bob"),
		Predicate: "uses",
		Object:    domain.LiteralRef(object),
		Polarity:  1,
		Status:    domain.StatusPendingReview,
	}
	require.NoError(t, as.Create(context.Background(), a))
	return a
}

func TestReviewService(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("approve records the reviewer", func(t *testing.T) {
		as := newMockAssertionStore()
		svc := NewReviewService(as, zap.NewNop())
		a := pendingAssertion(t, as, projectID, "Vim")

		got, err := svc.Approve(ctx, a.ID, "carol")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, got.Status)
		require.NotNil(t, got.ReviewedBy)
		assert.Equal(t, "carol", *got.ReviewedBy)
		assert.WithinDuration(t, time.Now(), *got.ReviewedAt, time.Minute)

		_, err = svc.Approve(ctx, a.ID, "carol")
		assert.ErrorIs(t, err, ErrNotPendingReview)
	})

	t.Run("reviewer defaults to admin", func(t *testing.T) {
		as := newMockAssertionStore()
		svc := NewReviewService(as, zap.NewNop())
		a := pendingAssertion(t, as, projectID, "Vim")

		got, err := svc.Approve(ctx, a.ID, " ")
		require.NoError(t, err)
		assert.Equal(t, DefaultReviewer, *got.ReviewedBy)
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		as := newMockAssertionStore()
		svc := NewReviewService(as, zap.NewNop())
		a := pendingAssertion(t, as, projectID, "Vim")

		_, err := svc.Reject(ctx, a.ID, "carol", "  ")
		assert.ErrorIs(t, err, ErrReasonRequired)

		got, err := svc.Reject(ctx, a.ID, "carol", "not true")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, got.Status)
		require.NotNil(t, got.RejectionReason)
		assert.Equal(t, "not true", *got.RejectionReason)

		_, err = svc.Reject(ctx, a.ID, "carol", "again")
		assert.ErrorIs(t, err, ErrNotPendingReview)
	})

	t.Run("unknown assertion", func(t *testing.T) {
		svc := NewReviewService(newMockAssertionStore(), zap.NewNop())
		_, err := svc.Approve(ctx, uuid.New(), "carol")
		assert.ErrorIs(t, err, ErrAssertionNotFound)
	})

	t.Run("bulk approve reports each failure", func(t *testing.T) {
		as := newMockAssertionStore()
		svc := NewReviewService(as, zap.NewNop())
		a := pendingAssertion(t, as, projectID, "Vim")
		b := pendingAssertion(t, as, projectID, "Emacs")
		_, err := svc.Approve(ctx, b.ID, "carol")
		require.NoError(t, err)

		res := svc.BulkApprove(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()}, "")
		assert.Equal(t, 1, res.ApprovedCount)
		assert.Equal(t, 3, res.TotalRequested)
		assert.Len(t, res.Errors, 2)
	})

	t.Run("list pending", func(t *testing.T) {
		as := newMockAssertionStore()
		svc := NewReviewService(as, zap.NewNop())
		pendingAssertion(t, as, projectID, "Vim")
		pendingAssertion(t, as, uuid.New(), "Nano")

		got, err := svc.ListPending(ctx, projectID, domain.PendingFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

type mockEpisodeStore struct {
	items []domain.EpisodicItem
}

func (m *mockEpisodeStore) Create(ctx context.Context, item *domain.EpisodicItem) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now().UTC()
	m.items = append(m.items, *item)
	return nil
}

func (m *mockEpisodeStore) GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.EpisodicItem, error) {
	var out []domain.EpisodicItem
	for _, it := range m.items {
		for _, id := range ids {
			if it.ID == id && it.ProjectID == projectID {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (m *mockEpisodeStore) ListRecent(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.EpisodicItem, error) {
	return m.items, nil
}

func TestEpisodeService_Ingest(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("stores every item", func(t *testing.T) {
		es := &mockEpisodeStore{}
		svc := NewEpisodeService(es, zap.NewNop())
		when := time.Date(2024, 5, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))

		items, err := svc.Ingest(ctx, projectID, []EpisodeInput{
			{Text: "Bob uses Vim", Source: " slack "},
			{Text: "Alice leads Platform", OccurredAt: &when},
		})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "slack", items[0].Source)
		assert.Equal(t, when.UTC(), items[1].OccurredAt)
		assert.NotEqual(t, uuid.Nil, items[0].ID)
	})

	t.Run("blank text rejects the whole batch", func(t *testing.T) {
		es := &mockEpisodeStore{}
		_, err := NewEpisodeService(es, zap.NewNop()).Ingest(ctx, projectID, []EpisodeInput{{Text: "ok"}, {Text: "  "}})
		assert.ErrorIs(t, err, ErrEpisodeTextEmpty)
		assert.Empty(t, es.items)
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := NewEpisodeService(&mockEpisodeStore{}, zap.NewNop()).Ingest(ctx, projectID, nil)
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})
}
