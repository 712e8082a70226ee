package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations_CreatesSchema(t *testing.T) {
	pool := TestPool(t)
	ctx := context.Background()

	// Running migrations again must be a no-op.
	require.NoError(t, RunMigrations(ctx, pool))

	tables := []string{"participants", "transactions", "daily_submission_counters"}
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, "table %s should exist", table)
	}
}

func TestUniqueReferenceConstraint(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	var participantID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO participants (name, track) VALUES ('Aye Chan', 'student') RETURNING id
	`).Scan(&participantID)
	require.NoError(t, err)

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (participant_id, reference_id, status)
		VALUES ($1, 'REF-001', 'approved')
	`, participantID)
	require.NoError(t, err)

	// Second non-rejected row with the same reference must violate the
	// partial unique index.
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (participant_id, reference_id, status)
		VALUES ($1, 'REF-001', 'pending')
	`, participantID)
	require.Error(t, err)
}

func TestUniqueReferenceConstraint_RejectedRowsExcluded(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	var participantID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO participants (name, track) VALUES ('Su Myat', 'student') RETURNING id
	`).Scan(&participantID)
	require.NoError(t, err)

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (participant_id, reference_id, status, rejection_reason)
		VALUES ($1, 'REF-002', 'rejected', 'outside week')
	`, participantID)
	require.NoError(t, err)

	// A rejected row does not burn the reference for a later valid attempt.
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (participant_id, reference_id, status)
		VALUES ($1, 'REF-002', 'approved')
	`, participantID)
	require.NoError(t, err)
}
