package repository

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/nandar/payquest/internal/database"
)

// dateLayout is the civil-date key for the daily counters.
const dateLayout = "2006-01-02"

// ThrottleRepository persists the per-participant per-day submission
// counters.
type ThrottleRepository struct {
	db database.PGXDB
}

// NewThrottleRepository creates a new ThrottleRepository.
func NewThrottleRepository(db database.PGXDB) *ThrottleRepository {
	return &ThrottleRepository{db: db}
}

// CountFor returns the number of attempts recorded for the participant on
// the given civil date. Zero when no counter row exists yet.
func (r *ThrottleRepository) CountFor(ctx context.Context, participantID int64, date time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT count FROM daily_submission_counters
			 WHERE participant_id = $1 AND submission_date = $2::date),
			0
		)
	`, participantID, date.Format(dateLayout)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get submission count: %w", err)
	}
	return count, nil
}

// Increment bumps the counter by one, creating the row on first use.
// The single upsert statement keeps concurrent increments for the same
// key safe; there is no read-modify-write window.
func (r *ThrottleRepository) Increment(ctx context.Context, participantID int64, date time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO daily_submission_counters (participant_id, submission_date, count)
		VALUES ($1, $2::date, 1)
		ON CONFLICT (participant_id, submission_date)
		DO UPDATE SET count = daily_submission_counters.count + 1
	`, participantID, date.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("failed to increment submission count: %w", err)
	}
	return nil
}
