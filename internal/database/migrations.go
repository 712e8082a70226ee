package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS participants (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			track TEXT NOT NULL DEFAULT 'student',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			participant_id BIGINT NOT NULL REFERENCES participants(id),
			reference_id TEXT NOT NULL DEFAULT '',
			transaction_date DATE,
			transaction_time TEXT NOT NULL DEFAULT '',
			amount DECIMAL(12, 2) NOT NULL DEFAULT 0,
			receipt_image_path TEXT NOT NULL DEFAULT '',
			raw_extracted_text TEXT NOT NULL DEFAULT '',
			parsed_fields JSONB,
			status TEXT NOT NULL,
			rejection_reason TEXT NOT NULL DEFAULT '',
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			approved_at TIMESTAMPTZ
		)`,

		// The authoritative anti-duplicate guarantee. The application-level
		// reference check is only a fast path for a friendlier rejection.
		// Rejected rows are excluded so a legitimate resubmission of the
		// same real-world transaction is not blocked forever.
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_transactions_reference_id
			ON transactions (reference_id)
			WHERE status <> 'rejected' AND reference_id <> ''`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_participant_id ON transactions(participant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_approved_at ON transactions(approved_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_image_hash ON transactions ((parsed_fields->>'image_hash'))`,

		`CREATE TABLE IF NOT EXISTS daily_submission_counters (
			participant_id BIGINT NOT NULL REFERENCES participants(id),
			submission_date DATE NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (participant_id, submission_date)
		)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
