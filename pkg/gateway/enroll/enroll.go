// Package enroll stores reference voiceprints keyed by user id. A
// voiceprint is the speaker embedding extracted from enrollment audio;
// the speaker-match analyzer compares live caller audio against it.
package enroll

import (
	"context"
	"errors"
	"time"
)

// ErrNotEnrolled is returned by Get when no voiceprint exists for the
// user. Callers treat it as a soft condition, not a failure.
var ErrNotEnrolled = errors.New("enroll: user not enrolled")

// Voiceprint is a stored reference embedding.
type Voiceprint struct {
	UserID    string    `json:"user_id"`
	Embedding []float64 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the voiceprint storage interface. Implementations must be
// safe for concurrent use.
type Store interface {
	// Put stores or replaces the voiceprint for vp.UserID.
	Put(ctx context.Context, vp *Voiceprint) error
	// Get returns the voiceprint for userID, or ErrNotEnrolled.
	Get(ctx context.Context, userID string) (*Voiceprint, error)
	// Delete removes the voiceprint. Deleting an absent user is not an error.
	Delete(ctx context.Context, userID string) error
	// Close releases any underlying resources.
	Close() error
}
