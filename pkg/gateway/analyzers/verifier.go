package analyzers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callshield/callshield/pkg/gateway/enroll"
)

// Verifier scores how well live caller audio matches the enrolled
// voiceprint for a user.
type Verifier struct {
	store enroll.Store
	embed Embedder
}

func NewVerifier(store enroll.Store, embed Embedder) *Verifier {
	return &Verifier{store: store, embed: embed}
}

// MatchScore embeds the caller audio and compares it against the stored
// voiceprint. An unenrolled user scores 0 without error; the risk engine
// treats a run of zeros as a low-match signal rather than a hard fault.
func (v *Verifier) MatchScore(ctx context.Context, userID string, wav []byte) (float64, error) {
	ref, err := v.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, enroll.ErrNotEnrolled) {
			return 0, nil
		}
		return 0, fmt.Errorf("verifier: load voiceprint: %w", err)
	}

	live, err := v.embed.Embed(ctx, wav)
	if err != nil {
		return 0, fmt.Errorf("verifier: embed caller audio: %w", err)
	}

	return NormalizeSimilarity(CosineSimilarity(ref.Embedding, live)), nil
}

// Enroll extracts an embedding from enrollment audio and stores it as
// the user's reference voiceprint.
func (v *Verifier) Enroll(ctx context.Context, userID string, wav []byte) (*enroll.Voiceprint, error) {
	embedding, err := v.embed.Embed(ctx, wav)
	if err != nil {
		return nil, fmt.Errorf("verifier: embed enrollment audio: %w", err)
	}
	vp := &enroll.Voiceprint{UserID: userID, Embedding: embedding, CreatedAt: time.Now()}
	if err := v.store.Put(ctx, vp); err != nil {
		return nil, fmt.Errorf("verifier: store voiceprint: %w", err)
	}
	return vp, nil
}
