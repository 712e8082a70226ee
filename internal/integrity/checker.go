// Package integrity screens receipt images for tampering, duplicates and
// structural problems before a submission is accepted.
//
// The whole package fails open: an internal error inside any check maps to
// a pass, never a block. The duplicate-reference check downstream is the
// authoritative fraud gate; these heuristics only catch the cheap cases,
// and a noisy heuristic must not lock legitimate users out. Swallowed
// errors are logged and counted separately from genuine failures so
// operators can watch the false-open rate.
package integrity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"strings"

	// Registered decoders for the structural check.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"gitlab.com/nandar/payquest/internal/logger"
	"gitlab.com/nandar/payquest/internal/metrics"
	"gitlab.com/nandar/payquest/internal/models"
)

const (
	// MaxImageBytes is the largest accepted receipt upload.
	MaxImageBytes = 5 << 20

	// MinDimension is the smallest accepted width or height in pixels.
	MinDimension = 200

	// metadataScanLimit bounds the editing-signature scan. EXIF segments
	// sit at the front of the file and are capped at 64 KiB.
	metadataScanLimit = 64 << 10
)

// editorSignatures are metadata strings left behind by common photo
// editors. Absence of metadata is not a failure: many capture pipelines
// strip it entirely.
var editorSignatures = []string{
	"adobe photoshop",
	"photoshop express",
	"lightroom",
	"gimp",
	"snapseed",
	"picsart",
	"pixlr",
	"canva",
	"photo editor",
}

// HashIndex answers whether an image fingerprint has been stored before.
type HashIndex interface {
	ExistsByImageHash(ctx context.Context, hash string) (bool, error)
}

// Result is the outcome of the check pipeline.
type Result struct {
	Passed bool
	Reason string
	Hash   string
}

// Checker runs the ordered short-circuit check pipeline.
type Checker struct {
	index   HashIndex
	metrics *metrics.Metrics
}

// NewChecker creates a Checker backed by the given fingerprint index.
func NewChecker(index HashIndex, m *metrics.Metrics) *Checker {
	return &Checker{index: index, metrics: m}
}

// Check runs metadata, fingerprint and structural checks in order; the
// first failure wins. The computed fingerprint is returned for storage in
// the transaction's parsed-field snapshot.
func (c *Checker) Check(ctx context.Context, data []byte) Result {
	result := Result{Passed: true}

	if reason := c.failOpen("metadata", func() (string, error) {
		return checkMetadata(data), nil
	}); reason != "" {
		return Result{Passed: false, Reason: reason}
	}

	hash := fingerprint(data)
	result.Hash = hash
	if reason := c.failOpen("fingerprint", func() (string, error) {
		seen, err := c.index.ExistsByImageHash(ctx, hash)
		if err != nil {
			return "", fmt.Errorf("fingerprint lookup: %w", err)
		}
		if seen {
			return models.ReasonDuplicateImage, nil
		}
		return "", nil
	}); reason != "" {
		return Result{Passed: false, Reason: reason, Hash: hash}
	}

	if reason := c.failOpen("structural", func() (string, error) {
		return checkStructure(data), nil
	}); reason != "" {
		return Result{Passed: false, Reason: reason, Hash: hash}
	}

	return result
}

// failOpen runs a single check and maps any internal error to a pass.
func (c *Checker) failOpen(name string, check func() (string, error)) string {
	reason, err := check()
	if err != nil {
		logger.Log.Warn().Err(err).
			Str("check", name).
			Msg("Integrity check errored, failing open")
		if c.metrics != nil {
			c.metrics.IntegrityFailOpen.WithLabelValues(name).Inc()
		}
		return ""
	}
	return reason
}

// checkMetadata scans the leading bytes for editing-software signatures.
func checkMetadata(data []byte) string {
	limit := len(data)
	if limit > metadataScanLimit {
		limit = metadataScanLimit
	}
	head := strings.ToLower(string(data[:limit]))
	for _, sig := range editorSignatures {
		if strings.Contains(head, sig) {
			return models.ReasonEditedImage
		}
	}
	return ""
}

// fingerprint computes the content hash used for duplicate-image detection.
func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// checkStructure rejects files that are not decodable images, exceed the
// size cap, or are smaller than the minimum pixel dimensions.
func checkStructure(data []byte) string {
	if len(data) > MaxImageBytes {
		return models.ReasonInvalidImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.ReasonInvalidImage
	}
	if cfg.Width < MinDimension || cfg.Height < MinDimension {
		return models.ReasonInvalidImage
	}
	return ""
}
