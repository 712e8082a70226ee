package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gitlab.com/nandar/payquest/internal/database"
	"gitlab.com/nandar/payquest/internal/models"
)

// ErrDuplicateReference is returned when the storage-level unique
// constraint rejects a reference ID that raced past the application-level
// check.
var ErrDuplicateReference = errors.New("reference ID already exists")

// uniqueViolation is the Postgres error code for unique constraint
// violations.
const uniqueViolation = "23505"

// SubmissionStore is the write side of the verification pipeline: it
// commits a transaction row together with its daily-counter increment in
// one database transaction, so a crash can never leave a half-written
// attempt.
type SubmissionStore struct {
	db       database.PGXDB
	beginner database.TxBeginner
}

// NewSubmissionStore creates a SubmissionStore. The beginner is usually
// the pgx pool; db is used for the non-transactional fallback increment.
func NewSubmissionStore(db database.PGXDB, beginner database.TxBeginner) *SubmissionStore {
	return &SubmissionStore{db: db, beginner: beginner}
}

// CommitAttempt atomically writes the transaction row and increments the
// submitter's daily counter. When the partial unique index on
// reference_id fires, ErrDuplicateReference is returned and nothing is
// written; the caller records the attempt as a duplicate rejection
// instead.
func (s *SubmissionStore) CommitAttempt(ctx context.Context, txn *models.Transaction) error {
	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := NewTransactionRepository(tx).Create(ctx, txn); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateReference
		}
		return err
	}

	if err := NewThrottleRepository(tx).Increment(ctx, txn.ParticipantID, txn.SubmittedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}
	return nil
}

// IncrementCounter bumps the daily counter outside any wrapping
// transaction. This is the documented exception for the error fallback
// path: even when the rejected-row write itself fails, the attempt still
// consumes a throttle slot.
func (s *SubmissionStore) IncrementCounter(ctx context.Context, participantID int64, date time.Time) error {
	return NewThrottleRepository(s.db).Increment(ctx, participantID, date)
}
