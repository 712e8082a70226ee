// Package throttle enforces the per-participant daily submission cap.
package throttle

import (
	"context"
	"time"
)

// Store reads and bumps daily submission counters. The Postgres
// implementation lives in the repository package; an in-memory store is
// provided here for tests.
type Store interface {
	CountFor(ctx context.Context, participantID int64, date time.Time) (int, error)
	Increment(ctx context.Context, participantID int64, date time.Time) error
}

// Throttle gates submissions against the daily cap. Every attempt,
// approved or rejected, consumes one slot; the counter increments happen
// as part of the pipeline's commit paths, not here.
type Throttle struct {
	store Store
	cap   int
}

// New creates a Throttle with the given cap.
func New(store Store, cap int) *Throttle {
	return &Throttle{store: store, cap: cap}
}

// CanSubmit reports whether the participant has attempts left today.
func (t *Throttle) CanSubmit(ctx context.Context, participantID int64, date time.Time) (bool, error) {
	count, err := t.store.CountFor(ctx, participantID, date)
	if err != nil {
		return false, err
	}
	return count < t.cap, nil
}
