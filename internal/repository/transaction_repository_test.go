package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/nandar/payquest/internal/database"
	"gitlab.com/nandar/payquest/internal/models"
)

func createParticipant(t *testing.T, db database.PGXDB, name, track string) *models.Participant {
	t.Helper()
	p := &models.Participant{Name: name, Track: track}
	require.NoError(t, NewParticipantRepository(db).Create(context.Background(), p))
	return p
}

func approvedTxn(participantID int64, ref string, approvedAt time.Time) *models.Transaction {
	return &models.Transaction{
		ParticipantID:    participantID,
		ReferenceID:      ref,
		TransactionDate:  approvedAt.Truncate(24 * time.Hour),
		TransactionTime:  "12:00:00",
		Amount:           decimal.NewFromInt(5000),
		ReceiptImagePath: "receipts/test.jpg",
		RawExtractedText: "transfer 5000",
		ParsedFields: &models.ParsedFields{
			ReferenceID: ref,
			Date:        approvedAt.Format("2006-01-02"),
			Time:        "12:00:00",
			Amount:      "5000.00",
			ImageHash:   "hash-" + ref,
		},
		Status:      models.StatusApproved,
		SubmittedAt: approvedAt,
		ApprovedAt:  &approvedAt,
	}
}

func TestTransactionRepository_CreateAndGet(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	p := createParticipant(t, tx, "Thiri", models.TrackStudent)
	repo := NewTransactionRepository(tx)

	now := time.Now().UTC().Truncate(time.Second)
	txn := approvedTxn(p.ID, "REF-100", now)
	require.NoError(t, repo.Create(ctx, txn))
	require.NotZero(t, txn.ID)

	got, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, "REF-100", got.ReferenceID)
	require.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.ParsedFields)
	require.Equal(t, "hash-REF-100", got.ParsedFields.ImageHash)
	require.True(t, decimal.NewFromInt(5000).Equal(got.Amount))
}

func TestTransactionRepository_CreateRejectedWithoutFields(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	p := createParticipant(t, tx, "Kaung", models.TrackStudent)
	repo := NewTransactionRepository(tx)

	txn := &models.Transaction{
		ParticipantID:   p.ID,
		Status:          models.StatusRejected,
		RejectionReason: models.ReasonNoText,
		SubmittedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, txn))

	got, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, got.Status)
	require.Empty(t, got.ReferenceID)
	require.Nil(t, got.ParsedFields)
	require.True(t, got.TransactionDate.IsZero())
}

func TestTransactionRepository_ExistsByReferenceID(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	p := createParticipant(t, tx, "Moe", models.TrackStudent)
	repo := NewTransactionRepository(tx)

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, approvedTxn(p.ID, "REF-200", now)))

	exists, err := repo.ExistsByReferenceID(ctx, "REF-200")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByReferenceID(ctx, "REF-999")
	require.NoError(t, err)
	require.False(t, exists)

	// Rejected rows do not block a reference.
	rejected := &models.Transaction{
		ParticipantID:   p.ID,
		ReferenceID:     "REF-201",
		Status:          models.StatusRejected,
		RejectionReason: models.ReasonOutsideWeek,
		SubmittedAt:     now,
	}
	require.NoError(t, repo.Create(ctx, rejected))

	exists, err = repo.ExistsByReferenceID(ctx, "REF-201")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestTransactionRepository_ExistsByImageHash(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	p := createParticipant(t, tx, "Hnin", models.TrackStudent)
	repo := NewTransactionRepository(tx)

	require.NoError(t, repo.Create(ctx, approvedTxn(p.ID, "REF-300", time.Now().UTC())))

	exists, err := repo.ExistsByImageHash(ctx, "hash-REF-300")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByImageHash(ctx, "hash-unknown")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestTransactionRepository_ApprovedInRange(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	p1 := createParticipant(t, tx, "Aung", models.TrackStudent)
	p2 := createParticipant(t, tx, "Zar Ni", models.TrackEntrepreneur)
	repo := NewTransactionRepository(tx)

	base := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, approvedTxn(p1.ID, "R-1", base)))
	require.NoError(t, repo.Create(ctx, approvedTxn(p1.ID, "R-2", base.Add(24*time.Hour))))
	require.NoError(t, repo.Create(ctx, approvedTxn(p2.ID, "R-3", base.Add(48*time.Hour))))

	// Rejected rows never show up.
	rejected := approvedTxn(p1.ID, "R-4", base)
	rejected.Status = models.StatusRejected
	rejected.ApprovedAt = nil
	rejected.ParsedFields.ImageHash = "hash-other"
	require.NoError(t, repo.Create(ctx, rejected))

	all, err := repo.ApprovedInRange(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Aung", all[0].Name)

	start := base.Add(12 * time.Hour)
	end := base.Add(36 * time.Hour)
	windowed, err := repo.ApprovedInRange(ctx, &start, &end)
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	require.Equal(t, p1.ID, windowed[0].ParticipantID)
}
