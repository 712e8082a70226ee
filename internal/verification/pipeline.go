// Package verification runs submitted receipt images through the
// verification state machine: throttle gate, image persistence, text and
// field extraction, integrity checks, duplicate detection, date-window
// validation and the final atomic commit.
//
// Every step failure is terminal and converted into a structured result.
// Nothing from the pipeline propagates to the transport layer as a fault:
// expected failures become rejected rows with a specific reason, and
// unexpected errors become rejected rows with a generic system-error
// reason. Both kinds consume a daily-throttle slot.
package verification

import (
	"context"
	"errors"
	"time"

	"gitlab.com/nandar/payquest/internal/calendar"
	"gitlab.com/nandar/payquest/internal/filestore"
	"gitlab.com/nandar/payquest/internal/gemini"
	"gitlab.com/nandar/payquest/internal/integrity"
	"gitlab.com/nandar/payquest/internal/logger"
	"gitlab.com/nandar/payquest/internal/metrics"
	"gitlab.com/nandar/payquest/internal/models"
	"gitlab.com/nandar/payquest/internal/ocr"
	"gitlab.com/nandar/payquest/internal/repository"
)

// Metric outcome labels for terminal pipeline results.
const (
	outcomeApproved    = "approved"
	outcomeRejected    = "rejected"
	outcomeThrottled   = "throttled"
	outcomeSystemError = "system_error"
)

// TextExtractor turns a receipt image into raw text.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

// FieldExtractor turns raw receipt text into structured payment fields.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, rawText string) (*gemini.Fields, error)
}

// IntegrityChecker runs the tamper and duplicate-image checks.
type IntegrityChecker interface {
	Check(ctx context.Context, data []byte) integrity.Result
}

// ReferenceIndex answers whether a reference ID is already taken.
type ReferenceIndex interface {
	ExistsByReferenceID(ctx context.Context, referenceID string) (bool, error)
}

// Committer persists terminal pipeline outcomes. CommitAttempt writes the
// transaction row and bumps the daily counter atomically; IncrementCounter
// is the error-path fallback when even the row write fails.
type Committer interface {
	CommitAttempt(ctx context.Context, txn *models.Transaction) error
	IncrementCounter(ctx context.Context, participantID int64, date time.Time) error
}

// Throttler is the daily-cap gate.
type Throttler interface {
	CanSubmit(ctx context.Context, participantID int64, date time.Time) (bool, error)
}

// Result is the terminal outcome of one verification attempt.
type Result struct {
	Approved bool
	// Reason is set on rejections: one of the models.Reason* strings.
	Reason string
	// Transaction is the persisted row. Nil when no row was written
	// (throttle rejections).
	Transaction *models.Transaction
}

// Pipeline wires the verification steps together. All dependencies are
// interfaces so tests can run the full state machine with fakes.
type Pipeline struct {
	store     filestore.Store
	text      TextExtractor
	fields    FieldExtractor
	integrity IntegrityChecker
	refs      ReferenceIndex
	committer Committer
	throttle  Throttler
	season    *calendar.Season
	metrics   *metrics.Metrics

	now      func() time.Time
	previews *previewCache
}

// NewPipeline creates a verification pipeline. The clock is injectable
// for tests; pass nil to use time.Now.
func NewPipeline(
	store filestore.Store,
	text TextExtractor,
	fields FieldExtractor,
	checker IntegrityChecker,
	refs ReferenceIndex,
	committer Committer,
	throttle Throttler,
	season *calendar.Season,
	m *metrics.Metrics,
	now func() time.Time,
) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		store:     store,
		text:      text,
		fields:    fields,
		integrity: checker,
		refs:      refs,
		committer: committer,
		throttle:  throttle,
		season:    season,
		metrics:   m,
		now:       now,
		previews:  newPreviewCache(previewTTL, now),
	}
}

// Submit runs one image through the full state machine and returns the
// terminal outcome. It never returns an error: failures are folded into
// the result, and every attempt past the throttle gate consumes a slot.
func (p *Pipeline) Submit(ctx context.Context, participantID int64, image []byte, filename string) *Result {
	pending, reason, err := p.run(ctx, participantID, image, filename)
	if err != nil {
		return p.systemError(ctx, pending, err)
	}
	if reason == models.ReasonDailyLimit {
		p.count(outcomeThrottled)
		logger.Log.Info().
			Str("participant", logger.HashParticipantID(participantID)).
			Msg("submission throttled")
		return &Result{Reason: reason}
	}
	if reason != "" {
		return p.reject(ctx, pending, reason)
	}
	return p.commit(ctx, pending)
}

// run executes steps 1 through 7 without persisting any outcome. It
// returns the row built so far, a rejection reason for expected failures,
// or an error for unexpected ones. Reason and error are mutually
// exclusive; both empty means the attempt is ready to commit.
func (p *Pipeline) run(ctx context.Context, participantID int64, image []byte, filename string) (*models.Transaction, string, error) {
	now := p.now()
	pending := &models.Transaction{ParticipantID: participantID, SubmittedAt: now}

	// Step 1: throttle gate. Runs before any paid extraction call.
	ok, err := p.throttle.CanSubmit(ctx, participantID, now)
	if err != nil {
		return pending, "", err
	}
	if !ok {
		return pending, models.ReasonDailyLimit, nil
	}

	// Step 2: persist the image before any paid API call so a failed
	// attempt still leaves its evidence on disk.
	path, err := p.store.Save(image, filename)
	if err != nil {
		return pending, "", err
	}
	pending.ReceiptImagePath = path

	// Step 3: raw text extraction.
	rawText, err := p.text.Extract(ctx, image)
	if err != nil {
		p.metrics.ExtractionFailures.WithLabelValues("text").Inc()
		if errors.Is(err, ocr.ErrNoText) {
			return pending, models.ReasonNoText, nil
		}
		return pending, "", err
	}
	pending.RawExtractedText = rawText

	// Step 4: structured field extraction.
	fields, err := p.fields.ExtractFields(ctx, rawText)
	if err != nil {
		p.metrics.ExtractionFailures.WithLabelValues("fields").Inc()
		if errors.Is(err, gemini.ErrMissingReference) {
			return pending, models.ReasonNoReferenceID, nil
		}
		return pending, "", err
	}
	attachFields(pending, fields)

	// Step 5: integrity checks on the stored image. The computed
	// fingerprint goes into the row snapshot either way.
	check := p.integrity.Check(ctx, image)
	pending.ParsedFields.ImageHash = check.Hash
	if !check.Passed {
		return pending, check.Reason, nil
	}

	// Step 6: the authoritative duplicate gate. The storage-level unique
	// constraint in the commit step backs this check up under races.
	taken, err := p.refs.ExistsByReferenceID(ctx, fields.ReferenceID)
	if err != nil {
		return pending, "", err
	}
	if taken {
		return pending, models.ReasonDuplicateRef, nil
	}

	// Step 7: date-window validation.
	if reason := p.dateWindowReason(now, fields.Date); reason != "" {
		return pending, reason, nil
	}

	return pending, "", nil
}

// commit performs step 8: the atomic approved write.
func (p *Pipeline) commit(ctx context.Context, pending *models.Transaction) *Result {
	now := p.now()
	pending.Status = models.StatusApproved
	pending.ApprovedAt = &now

	err := p.committer.CommitAttempt(ctx, pending)
	if err == nil {
		p.count(outcomeApproved)
		logger.Log.Info().
			Str("participant", logger.HashParticipantID(pending.ParticipantID)).
			Str("reference", logger.SanitizeReference(pending.ReferenceID)).
			Msg("submission approved")
		return &Result{Approved: true, Transaction: pending}
	}

	if errors.Is(err, repository.ErrDuplicateReference) {
		// Lost the race on the reference ID between step 6 and here.
		pending.Status = ""
		pending.ApprovedAt = nil
		return p.reject(ctx, pending, models.ReasonDuplicateRef)
	}
	return p.systemError(ctx, pending, err)
}

// reject persists a rejected row together with its counter bump and
// returns the terminal result. When even that write fails, the counter
// is still bumped on its own so the attempt counts against the cap.
func (p *Pipeline) reject(ctx context.Context, txn *models.Transaction, reason string) *Result {
	txn.Status = models.StatusRejected
	txn.RejectionReason = reason
	txn.ApprovedAt = nil

	if err := p.committer.CommitAttempt(ctx, txn); err != nil {
		logger.Log.Error().Err(err).
			Str("participant", logger.HashParticipantID(txn.ParticipantID)).
			Msg("failed to persist rejected attempt")
		p.incrementFallback(ctx, txn.ParticipantID, txn.SubmittedAt)
	}
	p.count(outcomeRejected)
	logger.Log.Info().
		Str("participant", logger.HashParticipantID(txn.ParticipantID)).
		Str("reason", reason).
		Msg("submission rejected")
	return &Result{Reason: reason, Transaction: txn}
}

// systemError records an unexpected failure as a rejected row with the
// generic reason. Crashed attempts still count against the daily quota.
func (p *Pipeline) systemError(ctx context.Context, txn *models.Transaction, cause error) *Result {
	logger.Log.Error().Err(cause).
		Str("participant", logger.HashParticipantID(txn.ParticipantID)).
		Msg("verification pipeline error")

	txn.Status = models.StatusRejected
	txn.RejectionReason = models.ReasonSystemError
	txn.ApprovedAt = nil
	if err := p.committer.CommitAttempt(ctx, txn); err != nil {
		logger.Log.Error().Err(err).Msg("failed to persist system-error attempt")
		p.incrementFallback(ctx, txn.ParticipantID, txn.SubmittedAt)
	}
	p.count(outcomeSystemError)
	return &Result{Reason: models.ReasonSystemError, Transaction: txn}
}

// incrementFallback bumps the daily counter outside any transaction.
// This is the one documented non-transactional write: when the rejected
// row itself cannot be stored, the attempt must still consume a slot.
func (p *Pipeline) incrementFallback(ctx context.Context, participantID int64, date time.Time) {
	if err := p.committer.IncrementCounter(ctx, participantID, date); err != nil {
		logger.Log.Error().Err(err).
			Str("participant", logger.HashParticipantID(participantID)).
			Msg("failed to increment daily counter")
	}
}

// dateWindowReason validates the transaction date against the calendar.
// It returns the empty string when the date is acceptable.
func (p *Pipeline) dateWindowReason(now, txDate time.Time) string {
	if civilAfter(txDate, now, p.season.Location) {
		return models.ReasonFutureDate
	}
	if p.season.HasEnded(now) {
		return models.ReasonCompetitionEnded
	}
	if !p.season.WithinCompetitionPeriod(txDate) {
		return models.ReasonOutsideSeason
	}
	week, ok := p.season.CurrentWeek(now)
	if !ok {
		return models.ReasonNotStarted
	}
	if week.Contains(txDate) {
		return ""
	}
	if p.season.ExtensionApplies(now, txDate) {
		return ""
	}
	return models.ReasonOutsideWeek
}

// civilAfter reports whether a's calendar date is after b's in loc.
func civilAfter(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}

// attachFields snapshots the extraction output onto the row.
func attachFields(txn *models.Transaction, fields *gemini.Fields) {
	txn.ReferenceID = fields.ReferenceID
	txn.TransactionDate = fields.Date
	txn.TransactionTime = fields.Time
	txn.Amount = fields.Amount
	txn.ParsedFields = &models.ParsedFields{
		ReferenceID:     fields.ReferenceID,
		Date:            fields.Date.Format("2006-01-02"),
		Time:            fields.Time,
		Amount:          fields.Amount.String(),
		TransactionType: fields.TransactionType,
	}
}

func (p *Pipeline) count(outcome string) {
	p.metrics.Submissions.WithLabelValues(outcome).Inc()
}
