package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

func TestMergeEvidence(t *testing.T) {
	existing := []domain.Evidence{{EpisodicID: "a", Quote: "first"}}
	incoming := []domain.Evidence{
		{EpisodicID: "a", Quote: "again"},
		{EpisodicID: "b", Quote: "new"},
		{EpisodicID: "b", Quote: "dup in batch"},
	}

	got := MergeEvidence(existing, incoming)
	assert.Equal(t, []domain.Evidence{
		{EpisodicID: "a", Quote: "first"},
		{EpisodicID: "b", Quote: "new"},
	}, got)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 50},
		{-5, 50},
		{10, 10},
		{200, 200},
		{5000, 200},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.in))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
