package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitlab.com/nandar/payquest/internal/database"
	"gitlab.com/nandar/payquest/internal/models"
)

// TransactionRepository handles transaction database operations.
type TransactionRepository struct {
	db database.PGXDB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db database.PGXDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new verification attempt. Rows are immutable once
// written: there is no Update.
func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	fields, err := marshalParsedFields(txn.ParsedFields)
	if err != nil {
		return err
	}

	var txDate *time.Time
	if !txn.TransactionDate.IsZero() {
		d := txn.TransactionDate
		txDate = &d
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO transactions (
			participant_id, reference_id, transaction_date, transaction_time,
			amount, receipt_image_path, raw_extracted_text, parsed_fields,
			status, rejection_reason, submitted_at, approved_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, txn.ParticipantID, txn.ReferenceID, txDate, txn.TransactionTime,
		txn.Amount, txn.ReceiptImagePath, txn.RawExtractedText, fields,
		txn.Status, txn.RejectionReason, txn.SubmittedAt, txn.ApprovedAt,
	).Scan(&txn.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ExistsByReferenceID reports whether a non-rejected transaction already
// carries this reference. This is the fast-path duplicate check; the
// partial unique index is the real guarantee.
func (r *TransactionRepository) ExistsByReferenceID(ctx context.Context, referenceID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE reference_id = $1 AND status <> $2
		)
	`, referenceID, models.StatusRejected).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return exists, nil
}

// ExistsByImageHash reports whether any stored transaction carries the
// same image fingerprint in its parsed-field snapshot.
func (r *TransactionRepository) ExistsByImageHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE parsed_fields->>'image_hash' = $1
		)
	`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check image hash: %w", err)
	}
	return exists, nil
}

// ApprovedInRange returns approved transactions joined with their
// participant, filtered to [start, end] on approved_at when given.
// Nil bounds mean all time.
func (r *TransactionRepository) ApprovedInRange(ctx context.Context, start, end *time.Time) ([]models.ApprovedRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.participant_id, p.name, p.track, t.amount, t.approved_at
		FROM transactions t
		JOIN participants p ON p.id = t.participant_id
		WHERE t.status = $1
		  AND ($2::timestamptz IS NULL OR t.approved_at >= $2)
		  AND ($3::timestamptz IS NULL OR t.approved_at <= $3)
		ORDER BY t.approved_at ASC, t.id ASC
	`, models.StatusApproved, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved transactions: %w", err)
	}
	defer rows.Close()

	var records []models.ApprovedRecord
	for rows.Next() {
		var rec models.ApprovedRecord
		if err := rows.Scan(&rec.ParticipantID, &rec.Name, &rec.Track, &rec.Amount, &rec.ApprovedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approved transaction: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approved transactions: %w", err)
	}
	return records, nil
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	var txDate *time.Time
	var fields []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, participant_id, reference_id, transaction_date, transaction_time,
		       amount, receipt_image_path, raw_extracted_text, parsed_fields,
		       status, rejection_reason, submitted_at, approved_at
		FROM transactions WHERE id = $1
	`, id).Scan(&txn.ID, &txn.ParticipantID, &txn.ReferenceID, &txDate, &txn.TransactionTime,
		&txn.Amount, &txn.ReceiptImagePath, &txn.RawExtractedText, &fields,
		&txn.Status, &txn.RejectionReason, &txn.SubmittedAt, &txn.ApprovedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if txDate != nil {
		txn.TransactionDate = *txDate
	}
	if len(fields) > 0 {
		var pf models.ParsedFields
		if err := json.Unmarshal(fields, &pf); err != nil {
			return nil, fmt.Errorf("failed to decode parsed fields: %w", err)
		}
		txn.ParsedFields = &pf
	}
	return &txn, nil
}

func marshalParsedFields(pf *models.ParsedFields) ([]byte, error) {
	if pf == nil {
		return nil, nil
	}
	data, err := json.Marshal(pf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parsed fields: %w", err)
	}
	return data, nil
}
