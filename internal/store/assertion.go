package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

const assertionColumns = `id, project_id,
	subject_kind, subject_entity_id, subject_text,
	predicate,
	object_kind, object_entity_id, object_text,
	polarity, confidence, status, reviewed_by, reviewed_at, rejection_reason,
	instruction_score, safety_score, provenance, evidence,
	strength, access_count, last_accessed_at, created_at`

type AssertionStore struct {
	db *pgxpool.Pool
}

func NewAssertionStore(db *pgxpool.Pool) *AssertionStore {
	return &AssertionStore{db: db}
}

func scanAssertion(row pgx.Row) (*domain.Assertion, error) {
	a := &domain.Assertion{}
	err := row.Scan(&a.ID, &a.ProjectID,
		&a.Subject.Kind, &a.Subject.EntityID, &a.Subject.Text,
		&a.Predicate,
		&a.Object.Kind, &a.Object.EntityID, &a.Object.Text,
		&a.Polarity, &a.Confidence, &a.Status, &a.ReviewedBy, &a.ReviewedAt, &a.RejectionReason,
		&a.InstructionScore, &a.SafetyScore, &a.Provenance, &a.Evidence,
		&a.Strength, &a.AccessCount, &a.LastAccessedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func collectAssertions(rows pgx.Rows) ([]domain.Assertion, error) {
	defer rows.Close()
	var out []domain.Assertion
	for rows.Next() {
		a, err := scanAssertion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *AssertionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assertion, error) {
	a, err := scanAssertion(s.db.QueryRow(ctx,
		`SELECT `+assertionColumns+` FROM assertions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// GetByIDs returns the project's assertions among ids.
func (s *AssertionStore) GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.Assertion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+assertionColumns+` FROM assertions WHERE project_id = $1 AND id = ANY($2)`, projectID, ids)
	if err != nil {
		return nil, err
	}
	return collectAssertions(rows)
}

func (s *AssertionStore) FindByKey(ctx context.Context, key domain.AssertionKey) (*domain.Assertion, error) {
	a, err := scanAssertion(s.db.QueryRow(ctx,
		`SELECT `+assertionColumns+` FROM assertions
		 WHERE project_id = $1 AND subject_key = $2 AND predicate = $3 AND object_key = $4 AND polarity = $5`,
		key.ProjectID, key.Subject.Key(), key.Predicate, key.Object.Key(), key.Polarity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AssertionStore) Create(ctx context.Context, a *domain.Assertion) error {
	return insertAssertion(ctx, s.db, a)
}

// Merge folds a duplicate into an existing assertion. Provenance is appended,
// evidence is unioned by episodic id and scores keep their maximum.
func (s *AssertionStore) Merge(ctx context.Context, id uuid.UUID, m domain.AssertionMerge) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var provenance []domain.ProofEnvelope
	var evidence []domain.Evidence
	err = tx.QueryRow(ctx,
		`SELECT provenance, evidence FROM assertions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&provenance, &evidence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	provenance = append(provenance, m.Provenance...)
	evidence = MergeEvidence(evidence, m.Evidence)

	_, err = tx.Exec(ctx,
		`UPDATE assertions
		 SET confidence = GREATEST(confidence, $2),
		     instruction_score = GREATEST(instruction_score, $3),
		     safety_score = GREATEST(safety_score, $4),
		     provenance = $5,
		     evidence = $6
		 WHERE id = $1`,
		id, m.Confidence, m.InstructionScore, m.SafetyScore, provenance, evidence,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MergeEvidence appends incoming citations whose episodic id is not yet present.
func MergeEvidence(existing, incoming []domain.Evidence) []domain.Evidence {
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e.EpisodicID] = struct{}{}
	}
	for _, e := range incoming {
		if _, ok := seen[e.EpisodicID]; ok {
			continue
		}
		seen[e.EpisodicID] = struct{}{}
		existing = append(existing, e)
	}
	return existing
}

func (s *AssertionStore) List(ctx context.Context, projectID uuid.UUID, f domain.AssertionFilter) ([]domain.Assertion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+assertionColumns+` FROM assertions
		 WHERE project_id = $1
		   AND ($2 = '' OR subject_text ILIKE '%' || $2 || '%')
		   AND ($3 = '' OR status = $3)
		 ORDER BY created_at DESC
		 LIMIT $4`,
		projectID, f.Subject, string(f.Status), clampLimit(f.Limit),
	)
	if err != nil {
		return nil, err
	}
	return collectAssertions(rows)
}

func (s *AssertionStore) ListPending(ctx context.Context, projectID uuid.UUID, f domain.PendingFilter) ([]domain.Assertion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+assertionColumns+` FROM assertions
		 WHERE project_id = $1 AND status = 'pending_review'
		   AND instruction_score >= $2 AND safety_score >= $3
		 ORDER BY created_at DESC
		 LIMIT $4 OFFSET $5`,
		projectID, f.MinInstructionScore, f.MinSafetyScore, clampLimit(f.Limit), max(f.Offset, 0),
	)
	if err != nil {
		return nil, err
	}
	return collectAssertions(rows)
}

func (s *AssertionStore) Review(ctx context.Context, id uuid.UUID, d domain.ReviewDecision) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE assertions
		 SET status = $2, reviewed_by = $3, reviewed_at = $4, rejection_reason = $5
		 WHERE id = $1 AND status = 'pending_review'`,
		id, d.Status, d.ReviewedBy, d.ReviewedAt, d.Reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assertions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotPending
}

func (s *AssertionStore) RecordAccess(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE assertions SET access_count = access_count + 1, last_accessed_at = $3
		 WHERE project_id = $1 AND id = ANY($2)`,
		projectID, ids, at,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertAssertion(ctx context.Context, db execQuerier, a *domain.Assertion) error {
	if a.Provenance == nil {
		a.Provenance = []domain.ProofEnvelope{}
	}
	if a.Evidence == nil {
		a.Evidence = []domain.Evidence{}
	}
	return db.QueryRow(ctx,
		`INSERT INTO assertions (project_id,
			subject_kind, subject_entity_id, subject_text, subject_key,
			predicate,
			object_kind, object_entity_id, object_text, object_key,
			polarity, confidence, status, rejection_reason,
			instruction_score, safety_score, provenance, evidence, strength, access_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 RETURNING id, created_at`,
		a.ProjectID,
		a.Subject.Kind, a.Subject.EntityID, a.Subject.Text, a.Subject.Key(),
		a.Predicate,
		a.Object.Kind, a.Object.EntityID, a.Object.Text, a.Object.Key(),
		a.Polarity, a.Confidence, a.Status, a.RejectionReason,
		a.InstructionScore, a.SafetyScore, a.Provenance, a.Evidence, a.Strength, a.AccessCount,
	).Scan(&a.ID, &a.CreatedAt)
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}
