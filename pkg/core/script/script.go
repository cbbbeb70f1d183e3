// Package script derives speaking-role windows from a fixed agent
// conversation script. The timeline is built once and is a pure function
// of the segment list, so role classification never touches session state.
package script

import (
	"time"
)

// OpenEnd is the sentinel end time of the final caller window. A large
// finite value is used instead of infinity so windows stay JSON-friendly.
const OpenEnd = 9999 * time.Second

// Role identifies who holds the speaking turn during a window.
type Role int

const (
	RoleAgent Role = iota
	RoleCaller
)

func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "agent"
	case RoleCaller:
		return "caller"
	default:
		return "unknown"
	}
}

// Segment is one ordered entry of the agent script: the line the agent
// speaks, how long the agent speaks it, and how long the caller is given
// to respond.
type Segment struct {
	Text           string        `json:"text"`
	AgentDuration  time.Duration `json:"agent_duration"`
	CallerDuration time.Duration `json:"caller_duration"`
}

// Window is a derived speaking-role interval [Start, End).
// SegmentIndex is -1 for caller windows.
type Window struct {
	Start        time.Duration `json:"start"`
	End          time.Duration `json:"end"`
	Role         Role          `json:"role"`
	SegmentIndex int           `json:"segment_index"`
}

// Contains reports whether elapsed falls inside [Start, End).
func (w Window) Contains(elapsed time.Duration) bool {
	return elapsed >= w.Start && elapsed < w.End
}

// Timeline is the immutable window sequence derived from a script.
type Timeline struct {
	segments []Segment
	windows  []Window
	scripted time.Duration
}

// New builds the timeline by accumulating segment durations: each segment
// contributes an agent window followed by a caller window, and a final
// open-ended caller window extends to OpenEnd. Windows are contiguous and
// non-overlapping, covering [0, OpenEnd).
func New(segments []Segment) *Timeline {
	segs := make([]Segment, len(segments))
	copy(segs, segments)

	windows := make([]Window, 0, 2*len(segs)+1)
	var cursor time.Duration
	for i, seg := range segs {
		windows = append(windows, Window{
			Start:        cursor,
			End:          cursor + seg.AgentDuration,
			Role:         RoleAgent,
			SegmentIndex: i,
		})
		cursor += seg.AgentDuration

		windows = append(windows, Window{
			Start:        cursor,
			End:          cursor + seg.CallerDuration,
			Role:         RoleCaller,
			SegmentIndex: -1,
		})
		cursor += seg.CallerDuration
	}
	windows = append(windows, Window{
		Start:        cursor,
		End:          OpenEnd,
		Role:         RoleCaller,
		SegmentIndex: -1,
	})

	return &Timeline{segments: segs, windows: windows, scripted: cursor}
}

// Windows returns a copy of the full ordered window sequence.
func (t *Timeline) Windows() []Window {
	out := make([]Window, len(t.windows))
	copy(out, t.windows)
	return out
}

// WindowAt returns the first window containing elapsed. Elapsed times
// beyond every window map to the last (open-ended) window, and negative
// times map to the first; WindowAt never fails.
func (t *Timeline) WindowAt(elapsed time.Duration) Window {
	if elapsed < 0 {
		return t.windows[0]
	}
	for _, w := range t.windows {
		if w.Contains(elapsed) {
			return w
		}
	}
	return t.windows[len(t.windows)-1]
}

// TotalScriptedDuration is the sum of all finite window durations, i.e.
// the call length up to the start of the final open-ended caller turn.
func (t *Timeline) TotalScriptedDuration() time.Duration {
	return t.scripted
}

// Segments returns a copy of the script segments.
func (t *Timeline) Segments() []Segment {
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Segment returns the script segment at index i. Out-of-range indexes
// return the closing fallback line rather than failing, matching how the
// agent side keeps talking past the scripted conversation.
func (t *Timeline) Segment(i int) Segment {
	if i < 0 || i >= len(t.segments) {
		return fallbackSegment
	}
	return t.segments[i]
}

var fallbackSegment = Segment{
	Text:           "Thank you for calling SecureBank. Is there anything else I can help you with?",
	AgentDuration:  5 * time.Second,
	CallerDuration: 20 * time.Second,
}

// Default returns the standard SecureBank support script used for
// verification calls.
func Default() *Timeline {
	return New([]Segment{
		{
			Text:           "Hello, this is Sarah from SecureBank customer support. How can I help you today?",
			AgentDuration:  7 * time.Second,
			CallerDuration: 15 * time.Second,
		},
		{
			Text:           "I see. Let me pull up your account information. Can you verify your account number for me?",
			AgentDuration:  6 * time.Second,
			CallerDuration: 10 * time.Second,
		},
		{
			Text:           "Thank you for that. Now, for security purposes, I need to verify a few more details. What is your mother's maiden name?",
			AgentDuration:  8500 * time.Millisecond,
			CallerDuration: 10 * time.Second,
		},
		{
			Text:           "Perfect. And can you confirm the last four digits of your social security number?",
			AgentDuration:  6 * time.Second,
			CallerDuration: 10 * time.Second,
		},
		{
			Text:           "Thank you for verifying that information. How else can I assist you today?",
			AgentDuration:  6 * time.Second,
			CallerDuration: 25 * time.Second,
		},
	})
}
