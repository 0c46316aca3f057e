package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBatch        = errors.New("batch has no episodic items")
	ErrNotPendingReview  = errors.New("assertion is not pending review")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrEpisodeTextEmpty  = errors.New("text is required")
	ErrAssertionNotFound = errors.New("assertion not found")
	ErrProjectMismatch   = errors.New("items belong to different projects")
)

// Stage names a batch-fatal step of condensation.
type Stage string

const (
	StageCanonicalization Stage = "canonicalization"
	StageEdgeSynthesis    Stage = "edge_synthesis"
	StagePersistence      Stage = "persistence"
)

// StageError aborts a whole condensation batch.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
