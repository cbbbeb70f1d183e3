// Package risk turns accumulated analysis scores into a user-facing call
// status. The computation is a pure function of the two score sequences;
// social-engineering verdicts are retained on the session but deliberately
// not folded in here.
package risk

import (
	"fmt"
	"math"
)

// Status is the coarse risk classification of a call.
type Status int

const (
	// StatusInitial means no analysis has produced a score yet.
	StatusInitial Status = iota
	// StatusSafe means both metrics pass their thresholds.
	StatusSafe
	// StatusUncertain means at least one metric is between its hard
	// cutoff and its safe threshold.
	StatusUncertain
	// StatusHighRisk means a metric crossed its hard cutoff.
	StatusHighRisk
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "INITIAL"
	case StatusSafe:
		return "SAFE"
	case StatusUncertain:
		return "UNCERTAIN"
	case StatusHighRisk:
		return "HIGH_RISK"
	default:
		return "UNKNOWN"
	}
}

// Hard cutoffs that force HIGH_RISK regardless of the safe thresholds.
const (
	lowMatchCutoff = 0.5
	highFakeCutoff = 0.6
)

// Assessment is the result of a risk computation.
type Assessment struct {
	MeanMatch float64
	MeanFake  float64
	Status    Status
	Reason    string
}

// Engine holds the SAFE-classification thresholds.
type Engine struct {
	// MatchThreshold is the minimum mean voice-match score for SAFE.
	MatchThreshold float64
	// FakeThreshold is the maximum mean synthetic-speech probability for SAFE.
	FakeThreshold float64
}

// NewEngine returns an engine with the default thresholds (0.8 / 0.2).
func NewEngine() Engine {
	return Engine{MatchThreshold: 0.8, FakeThreshold: 0.2}
}

// Compute derives the call status from the accumulated score sequences.
// Rules are evaluated in priority order: low voice match, then high
// synthetic-speech probability, then the SAFE band, else UNCERTAIN.
func (e Engine) Compute(matchScores, fakeScores []float64) Assessment {
	if len(matchScores) == 0 && len(fakeScores) == 0 {
		return Assessment{Status: StatusInitial, Reason: "awaiting caller audio"}
	}

	meanMatch := mean(matchScores)
	meanFake := mean(fakeScores)
	a := Assessment{MeanMatch: meanMatch, MeanFake: meanFake}

	switch {
	case meanMatch < lowMatchCutoff:
		a.Status = StatusHighRisk
		a.Reason = fmt.Sprintf("voice match is low (%.2f)", meanMatch)
	case meanFake > highFakeCutoff:
		a.Status = StatusHighRisk
		a.Reason = fmt.Sprintf("synthetic speech probability is high (%.2f)", meanFake)
	case meanMatch >= e.MatchThreshold && meanFake <= e.FakeThreshold:
		a.Status = StatusSafe
		a.Reason = "voice matches enrolled speaker and no synthetic speech detected"
	default:
		a.Status = StatusUncertain
		a.Reason = uncertainReason(e, meanMatch, meanFake)
	}
	return a
}

func uncertainReason(e Engine, meanMatch, meanFake float64) string {
	matchOK := meanMatch >= e.MatchThreshold
	fakeOK := meanFake <= e.FakeThreshold
	switch {
	case !matchOK && !fakeOK:
		return fmt.Sprintf("voice match (%.2f) below threshold and synthetic speech probability (%.2f) above threshold", meanMatch, meanFake)
	case !matchOK:
		return fmt.Sprintf("voice match (%.2f) below threshold", meanMatch)
	default:
		return fmt.Sprintf("synthetic speech probability (%.2f) above threshold", meanFake)
	}
}

// NormalizeTo100 converts a [0, 1] score to a 0-100 integer for display.
func NormalizeTo100(score float64) int {
	return int(math.Round(score * 100))
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
