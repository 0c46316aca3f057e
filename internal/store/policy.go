package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

type PolicyStore struct {
	db *pgxpool.Pool
}

func NewPolicyStore(db *pgxpool.Pool) *PolicyStore {
	return &PolicyStore{db: db}
}

func (s *PolicyStore) GetByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Policy, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, trigger, rule, priority, scope, confidence, provenance, created_at
		 FROM policies WHERE project_id = $1 ORDER BY priority DESC, created_at`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Trigger, &p.Rule, &p.Priority, &p.Scope,
			&p.Confidence, &p.Provenance, &p.CreatedAt); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}
