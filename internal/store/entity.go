package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

type EntityStore struct {
	db *pgxpool.Pool
}

func NewEntityStore(db *pgxpool.Pool) *EntityStore {
	return &EntityStore{db: db}
}

func (s *EntityStore) Create(ctx context.Context, e *domain.Entity) error {
	if e.Aliases == nil {
		e.Aliases = []string{}
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO entities (project_id, type, canonical_name, aliases, confidence)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, first_seen_at, last_seen_at`,
		e.ProjectID, e.Type, e.CanonicalName, e.Aliases, e.Confidence,
	).Scan(&e.ID, &e.FirstSeenAt, &e.LastSeenAt)
}

func (s *EntityStore) GetByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Entity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, type, canonical_name, aliases, confidence, first_seen_at, last_seen_at
		 FROM entities WHERE project_id = $1 ORDER BY first_seen_at, canonical_name`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Type, &e.CanonicalName, &e.Aliases,
			&e.Confidence, &e.FirstSeenAt, &e.LastSeenAt); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *EntityStore) UpdateAliases(ctx context.Context, id uuid.UUID, aliases []string, seenAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE entities SET aliases = $2, last_seen_at = $3 WHERE id = $1`,
		id, aliases, seenAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *EntityStore) TouchLastSeen(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE entities SET last_seen_at = $3 WHERE project_id = $1 AND id = ANY($2)`,
		projectID, ids, at,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
