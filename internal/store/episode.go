package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

type EpisodeStore struct {
	db *pgxpool.Pool
}

func NewEpisodeStore(db *pgxpool.Pool) *EpisodeStore {
	return &EpisodeStore{db: db}
}

func (s *EpisodeStore) Create(ctx context.Context, item *domain.EpisodicItem) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO episodic_items (project_id, text, source, occurred_at)
		 VALUES ($1, $2, $3, COALESCE($4, NOW()))
		 RETURNING id, occurred_at, created_at`,
		item.ProjectID, item.Text, item.Source, nullTime(item.OccurredAt),
	).Scan(&item.ID, &item.OccurredAt, &item.CreatedAt)
}

// GetByIDs returns the project's items among ids in occurrence order.
func (s *EpisodeStore) GetByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]domain.EpisodicItem, error) {
	return s.query(ctx,
		`SELECT id, project_id, text, source, occurred_at, created_at
		 FROM episodic_items WHERE project_id = $1 AND id = ANY($2)
		 ORDER BY occurred_at, created_at`,
		projectID, ids,
	)
}

func (s *EpisodeStore) ListRecent(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.EpisodicItem, error) {
	return s.query(ctx,
		`SELECT id, project_id, text, source, occurred_at, created_at
		 FROM episodic_items WHERE project_id = $1
		 ORDER BY occurred_at DESC LIMIT $2`,
		projectID, limit,
	)
}

func (s *EpisodeStore) query(ctx context.Context, sql string, args ...any) ([]domain.EpisodicItem, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.EpisodicItem
	for rows.Next() {
		var it domain.EpisodicItem
		if err := rows.Scan(&it.ID, &it.ProjectID, &it.Text, &it.Source, &it.OccurredAt, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
