// Package jobs holds identifier and routing helpers for edit jobs.
package jobs

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// RequestIDPrefix marks identifiers minted by this API rather than a provider.
const RequestIDPrefix = "req-"

// GenerateID creates a new cryptographically random ID with the given prefix.
// The prefix should include a trailing dash, e.g. "req-".
func GenerateID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msgf("Failed to generate random %s ID", prefix)
	}
	return prefix + hex.EncodeToString(b)
}

// NewRequestID returns the per-request correlation id echoed to clients.
func NewRequestID() string {
	return GenerateID(RequestIDPrefix)
}
