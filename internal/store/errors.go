package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrNotPending is returned by Review when the assertion has already left
	// pending_review.
	ErrNotPending = errors.New("assertion is not pending review")
)
