package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/store"
)

const DefaultReviewer = "admin"

// BulkApproveResult reports a bulk approval. Errors holds one message per
// assertion that could not be approved.
type BulkApproveResult struct {
	ApprovedCount  int      `json:"approved_count"`
	TotalRequested int      `json:"total_requested"`
	Errors         []string `json:"errors"`
}

// ReviewService moves pending assertions to approved or rejected.
type ReviewService struct {
	assertions domain.AssertionStore
	logger     *zap.Logger
}

func NewReviewService(as domain.AssertionStore, logger *zap.Logger) *ReviewService {
	return &ReviewService{assertions: as, logger: logger}
}

func (s *ReviewService) ListPending(ctx context.Context, projectID uuid.UUID, f domain.PendingFilter) ([]domain.Assertion, error) {
	return s.assertions.ListPending(ctx, projectID, f)
}

// Get returns ErrAssertionNotFound for assertions outside projectID.
func (s *ReviewService) Get(ctx context.Context, projectID, id uuid.UUID) (*domain.Assertion, error) {
	a, err := s.assertions.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAssertionNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.ProjectID != projectID {
		return nil, ErrAssertionNotFound
	}
	return a, nil
}

func (s *ReviewService) Approve(ctx context.Context, id uuid.UUID, reviewer string) (*domain.Assertion, error) {
	return s.decide(ctx, id, domain.StatusApproved, reviewer, nil)
}

// Reject requires a non-empty reason.
func (s *ReviewService) Reject(ctx context.Context, id uuid.UUID, reviewer, reason string) (*domain.Assertion, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.decide(ctx, id, domain.StatusRejected, reviewer, &reason)
}

func (s *ReviewService) BulkApprove(ctx context.Context, ids []uuid.UUID, reviewer string) *BulkApproveResult {
	result := &BulkApproveResult{TotalRequested: len(ids), Errors: []string{}}
	for _, id := range ids {
		if _, err := s.Approve(ctx, id, reviewer); err != nil {
			result.Errors = append(result.Errors, id.String()+": "+err.Error())
			continue
		}
		result.ApprovedCount++
	}
	return result
}

func (s *ReviewService) decide(ctx context.Context, id uuid.UUID, status domain.AssertionStatus, reviewer string, reason *string) (*domain.Assertion, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		reviewer = DefaultReviewer
	}

	err := s.assertions.Review(ctx, id, domain.ReviewDecision{
		Status:     status,
		ReviewedBy: reviewer,
		ReviewedAt: time.Now().UTC(),
		Reason:     reason,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrAssertionNotFound
	case errors.Is(err, store.ErrNotPending):
		return nil, ErrNotPendingReview
	case err != nil:
		return nil, err
	}

	s.logger.Info("assertion reviewed",
		zap.String("assertion_id", id.String()),
		zap.String("status", string(status)),
		zap.String("reviewer", reviewer))

	return s.assertions.GetByID(ctx, id)
}
