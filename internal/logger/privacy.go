package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

var hashSalt string

// InitHashSalt loads the log hashing salt from the environment.
// In production, set LOG_HASH_SALT.
func InitHashSalt() {
	hashSalt = os.Getenv("LOG_HASH_SALT")
	if hashSalt == "" {
		hashSalt = "default-salt-change-in-production"
	}
}

// HashParticipantID creates a privacy-preserving hash of a participant ID.
// This allows tracing a participant's submissions across log lines without
// exposing who they are.
func HashParticipantID(participantID int64) string {
	data := fmt.Sprintf("%d:%s", participantID, hashSalt)
	hash := sha256.Sum256([]byte(data))
	// First 8 characters are enough for correlation.
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeReference redacts a payment reference ID for logging, keeping a
// short prefix so operators can still correlate with support tickets.
func SanitizeReference(ref string) string {
	if ref == "" {
		return "<empty>"
	}
	if len(ref) <= 4 {
		return fmt.Sprintf("<%d chars>", len(ref))
	}
	return ref[:4] + strings.Repeat("*", len(ref)-4)
}

// SanitizeText is a general-purpose sanitizer for extracted receipt text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}
	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}
	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}
