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

const relationColumns = `id, project_id, from_id, from_kind, relation_type, to_id, to_kind,
	confidence, strength, access_count, last_accessed_at, provenance, created_at`

type RelationStore struct {
	db *pgxpool.Pool
}

func NewRelationStore(db *pgxpool.Pool) *RelationStore {
	return &RelationStore{db: db}
}

func scanRelation(row pgx.Row) (*domain.Relation, error) {
	r := &domain.Relation{}
	err := row.Scan(&r.ID, &r.ProjectID, &r.FromID, &r.FromKind, &r.RelationType, &r.ToID, &r.ToKind,
		&r.Confidence, &r.Strength, &r.AccessCount, &r.LastAccessedAt, &r.Provenance, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RelationStore) Get(ctx context.Context, projectID, fromID, toID uuid.UUID, relationType string) (*domain.Relation, error) {
	r, err := scanRelation(s.db.QueryRow(ctx,
		`SELECT `+relationColumns+` FROM relations
		 WHERE project_id = $1 AND from_id = $2 AND to_id = $3 AND relation_type = $4`,
		projectID, fromID, toID, relationType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *RelationStore) Create(ctx context.Context, r *domain.Relation) error {
	if r.Provenance == nil {
		r.Provenance = []domain.BatchProvenance{}
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO relations (project_id, from_id, from_kind, relation_type, to_id, to_kind,
			confidence, strength, access_count, last_accessed_at, provenance)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		r.ProjectID, r.FromID, r.FromKind, r.RelationType, r.ToID, r.ToKind,
		r.Confidence, r.Strength, r.AccessCount, r.LastAccessedAt, r.Provenance,
	).Scan(&r.ID, &r.CreatedAt)
}

// Update writes back the mutable fields of an existing relation.
func (s *RelationStore) Update(ctx context.Context, r *domain.Relation) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE relations
		 SET confidence = $2, strength = $3, access_count = $4, last_accessed_at = $5, provenance = $6
		 WHERE id = $1`,
		r.ID, r.Confidence, r.Strength, r.AccessCount, r.LastAccessedAt, r.Provenance,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RelationStore) ListWithin(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.Relation, error) {
	if len(ids) < 2 {
		return nil, nil
	}
	return s.query(ctx,
		`SELECT `+relationColumns+` FROM relations
		 WHERE project_id = $1 AND from_id = ANY($2) AND to_id = ANY($2)`,
		projectID, ids)
}

func (s *RelationStore) ListOutgoing(ctx context.Context, projectID uuid.UUID, fromIDs []uuid.UUID, minStrength float64) ([]domain.Relation, error) {
	if len(fromIDs) == 0 {
		return nil, nil
	}
	return s.query(ctx,
		`SELECT `+relationColumns+` FROM relations
		 WHERE project_id = $1 AND from_id = ANY($2) AND strength > $3`,
		projectID, fromIDs, minStrength)
}

// ApplyDecay lowers every relation last touched before the cutoff whose
// strength is still above floor. The result is not clamped to floor.
func (s *RelationStore) ApplyDecay(ctx context.Context, before time.Time, floor, rate float64) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE relations SET strength = strength - $3
		 WHERE last_accessed_at < $1 AND strength > $2`,
		before, floor, rate,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *RelationStore) query(ctx context.Context, sql string, args ...any) ([]domain.Relation, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
