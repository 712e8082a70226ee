// Package models defines the domain entities for the payment competition.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySubmissionCap is the maximum number of submission attempts
// (approved or rejected) a participant may make per calendar day.
const DailySubmissionCap = 100

// Track identifies which leaderboard a participant competes on.
const (
	TrackStudent      = "student"
	TrackEntrepreneur = "entrepreneur"
)

// Transaction status values. A row is written once per submission attempt
// and never mutated afterwards; corrections require a new submission.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// Rejection reasons persisted on rejected transactions. Every rejection
// carries exactly one of these human-readable strings.
const (
	ReasonDailyLimit       = "daily submission limit reached"
	ReasonNoText           = "could not extract text from the receipt"
	ReasonNoReferenceID    = "could not extract a reference ID from the receipt"
	ReasonEditedImage      = "the image appears to have been edited"
	ReasonDuplicateImage   = "this receipt image has already been submitted"
	ReasonInvalidImage     = "the file is not a valid receipt image"
	ReasonDuplicateRef     = "a receipt with this reference ID has already been submitted"
	ReasonFutureDate       = "the transaction date is in the future"
	ReasonCompetitionEnded = "the competition has ended"
	ReasonOutsideSeason    = "the transaction date is outside the competition period"
	ReasonNotStarted       = "the competition has not started yet"
	ReasonOutsideWeek      = "the transaction date is outside the current competition week"
	ReasonSystemError      = "a system error occurred, please try again"
)

// Participant is a registered competitor: either a student or a
// registered entrepreneur business unit.
type Participant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Track     string    `json:"track"`
	CreatedAt time.Time `json:"created_at"`
}

// ParsedFields is the structured snapshot of the extraction output,
// retained on the transaction row for audit.
type ParsedFields struct {
	ReferenceID     string `json:"reference_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Amount          string `json:"amount"`
	TransactionType string `json:"transaction_type"`
	ImageHash       string `json:"image_hash,omitempty"`
}

// Transaction is one verification attempt, approved or rejected.
// Rejected attempts are persisted too: they consume a daily-throttle slot
// and remain available for audit.
type Transaction struct {
	ID               int64
	ParticipantID    int64
	ReferenceID      string
	TransactionDate  time.Time
	TransactionTime  string
	Amount           decimal.Decimal
	ReceiptImagePath string
	RawExtractedText string
	ParsedFields     *ParsedFields
	Status           string
	RejectionReason  string
	SubmittedAt      time.Time
	ApprovedAt       *time.Time
}

// IsApproved reports whether this attempt passed verification.
func (t *Transaction) IsApproved() bool {
	return t.Status == StatusApproved
}

// DailySubmissionCounter tracks attempts per participant per day.
type DailySubmissionCounter struct {
	ParticipantID  int64
	SubmissionDate time.Time
	Count          int
}

// LeaderboardEntry is one ranked row, produced fresh from aggregation
// and never persisted.
type LeaderboardEntry struct {
	ParticipantID    int64           `json:"participant_id"`
	Name             string          `json:"name"`
	TransactionCount int             `json:"transaction_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	FirstApprovedAt  time.Time       `json:"first_approved_at"`
	Rank             int             `json:"rank"`
}

// ApprovedRecord is the flat row shape the ranking engine aggregates:
// one approved transaction joined with its participant.
type ApprovedRecord struct {
	ParticipantID int64
	Name          string
	Track         string
	Amount        decimal.Decimal
	ApprovedAt    time.Time
}
