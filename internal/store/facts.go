package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

// FactWriter persists one batch of admitted assertions and policies in a
// single transaction.
type FactWriter struct {
	db *pgxpool.Pool
}

func NewFactWriter(db *pgxpool.Pool) *FactWriter {
	return &FactWriter{db: db}
}

// PersistFacts inserts every assertion and policy or none of them. An
// assertion whose uniqueness key was taken by a concurrent batch is left
// with a zero id.
func (w *FactWriter) PersistFacts(ctx context.Context, assertions []*domain.Assertion, policies []*domain.Policy) error {
	if len(assertions) == 0 && len(policies) == 0 {
		return nil
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, a := range assertions {
		if err := insertAssertionTx(ctx, tx, a); err != nil {
			return fmt.Errorf("insert assertion %q: %w", a.Render(), err)
		}
	}

	for _, p := range policies {
		if p.Provenance == nil {
			p.Provenance = []domain.ProofEnvelope{}
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO policies (project_id, trigger, rule, priority, scope, confidence, provenance)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at`,
			p.ProjectID, p.Trigger, p.Rule, p.Priority, p.Scope, p.Confidence, p.Provenance,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert policy: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func insertAssertionTx(ctx context.Context, tx pgx.Tx, a *domain.Assertion) error {
	if _, err := tx.Exec(ctx, `SAVEPOINT fact`); err != nil {
		return err
	}
	err := insertAssertion(ctx, tx, a)
	if err == nil {
		_, err = tx.Exec(ctx, `RELEASE SAVEPOINT fact`)
		return err
	}
	if isUniqueViolation(err) {
		_, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT fact`)
		return rbErr
	}
	return err
}
