package verification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/nandar/payquest/internal/logger"
	"gitlab.com/nandar/payquest/internal/models"
)

// previewTTL bounds how long a previewed attempt stays confirmable.
const previewTTL = 10 * time.Minute

const maxPreviewCleanupInterval = time.Minute

// ErrPreviewNotFound is returned by Confirm for unknown, expired or
// already-consumed preview tokens.
var ErrPreviewNotFound = errors.New("preview token is unknown or expired")

// PreviewResult is the outcome of a dry verification run. Token is set
// only when the attempt would be approved; the caller passes it to
// Confirm to perform the commit.
type PreviewResult struct {
	Token  string
	Reason string
	// Transaction is the row that Confirm would write. It carries the
	// extracted fields so the caller can show them to the user.
	Transaction *models.Transaction
}

// WouldApprove reports whether confirming this preview commits a row.
func (r *PreviewResult) WouldApprove() bool {
	return r.Token != ""
}

// Preview runs the verification steps without writing any row or
// consuming a throttle slot, so the caller can show the user what would
// happen. The uploaded image is still persisted; a later Confirm must
// not re-run OCR or field extraction.
func (p *Pipeline) Preview(ctx context.Context, participantID int64, image []byte, filename string) *PreviewResult {
	pending, reason, err := p.run(ctx, participantID, image, filename)
	if err != nil {
		logger.Log.Error().Err(err).
			Str("participant", logger.HashParticipantID(participantID)).
			Msg("preview verification error")
		return &PreviewResult{Reason: models.ReasonSystemError}
	}
	if reason != "" {
		return &PreviewResult{Reason: reason, Transaction: pending}
	}
	return &PreviewResult{
		Token:       p.previews.put(pending),
		Transaction: pending,
	}
}

// Confirm commits a previously previewed attempt. Only the commit step
// runs: extraction and validation results are replayed from the preview.
// Each token is single-use. The duplicate-reference constraint still
// applies at commit time, so a reference claimed between preview and
// confirm yields a duplicate rejection rather than a double approval.
func (p *Pipeline) Confirm(ctx context.Context, token string) (*Result, error) {
	pending, ok := p.previews.take(token)
	if !ok {
		return nil, ErrPreviewNotFound
	}
	return p.commit(ctx, pending), nil
}

type previewEntry struct {
	pending   *models.Transaction
	expiresAt time.Time
}

// previewCache holds previewed attempts awaiting confirmation, keyed by
// single-use random token. Entries expire after the TTL; expired entries
// are swept opportunistically on insert.
type previewCache struct {
	ttl time.Duration
	now func() time.Time

	mu          sync.Mutex
	entries     map[string]previewEntry
	lastCleanup time.Time
}

func newPreviewCache(ttl time.Duration, now func() time.Time) *previewCache {
	return &previewCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]previewEntry),
	}
}

func (c *previewCache) put(pending *models.Transaction) string {
	token := uuid.NewString()
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = previewEntry{pending: pending, expiresAt: now.Add(c.ttl)}
	c.cleanupExpiredLocked(now)
	return token
}

func (c *previewCache) take(token string) (*models.Transaction, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[token]
	if !ok {
		return nil, false
	}
	delete(c.entries, token)
	if now.After(entry.expiresAt) {
		return nil, false
	}
	return entry.pending, true
}

func (c *previewCache) cleanupExpiredLocked(now time.Time) {
	interval := c.ttl
	if interval > maxPreviewCleanupInterval {
		interval = maxPreviewCleanupInterval
	}
	if !c.lastCleanup.IsZero() && now.Sub(c.lastCleanup) < interval {
		return
	}
	for token, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, token)
		}
	}
	c.lastCleanup = now
}
