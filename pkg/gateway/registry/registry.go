// Package registry is the concurrency-safe store of per-call session
// state. Every mutation goes through the registry; ingest loops hold only
// a session id, never a writable reference to the session itself.
package registry

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCapacity is returned by Create when the registry is full and
// eviction could not free a slot.
var ErrCapacity = errors.New("registry: session capacity exceeded")

// SEResult is a structured social-engineering verdict. Verdicts are
// accumulated on the session but are not folded into the risk status.
type SEResult struct {
	RiskScore      int      `json:"risk_score"`
	RiskLevel      string   `json:"risk_level"`
	FlaggedPhrases []string `json:"flagged_phrases,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	Transcript     string   `json:"transcript,omitempty"`
}

// session is the registry-owned mutable call state. It never escapes the
// registry lock; callers get copies via View and the slice accessors.
type session struct {
	id        string
	userID    string
	startTime time.Time
	elapsed   time.Duration

	rawAudio    [][]byte
	callerAudio [][]byte
	callerBytes int

	matchScores []float64
	fakeScores  []float64
	seResults   []SEResult

	active bool
}

// View is a read-only snapshot of session metadata.
type View struct {
	ID        string
	UserID    string
	StartTime time.Time
	Elapsed   time.Duration
	Active    bool
}

// Config bounds the registry.
type Config struct {
	// MaxSessions is the capacity; Create evicts inactive or timed-out
	// sessions once it is reached.
	MaxSessions int
	// SessionTimeout is the age beyond which a session is evictable.
	SessionTimeout time.Duration
}

// DefaultConfig returns the standard registry bounds.
func DefaultConfig() Config {
	return Config{MaxSessions: 100, SessionTimeout: 5 * time.Minute}
}

// Registry stores active sessions behind a single mutex. Operations are
// O(1) map lookups plus amortized appends, so the coarse lock keeps the
// critical sections small without per-session locking.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	cfg      Config
	now      func() time.Time
}

// New creates an empty registry. A zero MaxSessions falls back to the
// default capacity.
func New(cfg Config) *Registry {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultConfig().MaxSessions
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultConfig().SessionTimeout
	}
	return &Registry{
		sessions: make(map[string]*session),
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock overrides the registry clock. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now != nil {
		r.now = now
	}
}

// Create allocates a fresh session for userID. At capacity it first
// evicts sessions that are inactive or older than the timeout; if nothing
// can be evicted, it fails with ErrCapacity rather than dropping a live
// call.
func (r *Registry) Create(userID string) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.cfg.MaxSessions {
		r.evictLocked()
	}
	if len(r.sessions) >= r.cfg.MaxSessions {
		return View{}, ErrCapacity
	}

	s := &session{
		id:        uuid.NewString(),
		userID:    userID,
		startTime: r.now(),
		active:    true,
	}
	r.sessions[s.id] = s
	return viewOf(s), nil
}

func (r *Registry) evictLocked() {
	now := r.now()
	for id, s := range r.sessions {
		if !s.active || now.Sub(s.startTime) > r.cfg.SessionTimeout {
			delete(r.sessions, id)
		}
	}
}

// Get returns a snapshot of the session, or ok=false if it is unknown.
func (r *Registry) Get(id string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return View{}, false
	}
	return viewOf(s), true
}

// TouchElapsed recomputes elapsed = now - start. The stored value never
// decreases, so elapsed stays monotonic even if the clock is adjusted.
func (r *Registry) TouchElapsed(id string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return 0, false
	}
	if e := r.now().Sub(s.startTime); e > s.elapsed {
		s.elapsed = e
	}
	return s.elapsed, true
}

// AppendRaw records a received chunk on the export/debug buffer.
// A no-op when the session no longer exists.
func (r *Registry) AppendRaw(id string, chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	s.rawAudio = append(s.rawAudio, cloneChunk(chunk))
}

// AppendCaller records a chunk received during a caller window. Caller
// audio is never cleared for the lifetime of the session.
func (r *Registry) AppendCaller(id string, chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	c := cloneChunk(chunk)
	s.callerAudio = append(s.callerAudio, c)
	s.callerBytes += len(c)
}

// AppendMatchScore appends a speaker-verification score. Scores outside
// [0, 1] or NaN are dropped. A no-op for unknown sessions, which lets an
// in-flight analysis race a deletion safely.
func (r *Registry) AppendMatchScore(id string, score float64) {
	if !validScore(score) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.matchScores = append(s.matchScores, score)
	}
}

// AppendFakeScore appends a synthetic-speech probability, with the same
// tolerance rules as AppendMatchScore.
func (r *Registry) AppendFakeScore(id string, score float64) {
	if !validScore(score) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.fakeScores = append(s.fakeScores, score)
	}
}

// AppendSEResult appends a social-engineering verdict. A no-op for
// unknown sessions.
func (r *Registry) AppendSEResult(id string, result SEResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.seResults = append(s.seResults, result)
	}
}

// CallerBytes returns the total accumulated caller-audio byte count.
func (r *Registry) CallerBytes(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s.callerBytes
	}
	return 0
}

// CallerAll returns a flattened copy of the entire caller-audio buffer.
func (r *Registry) CallerAll(id string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	return flatten(s.callerAudio, s.callerBytes)
}

// CallerTail returns a copy of the most recent maxBytes of caller audio,
// or everything if the buffer is shorter.
func (r *Registry) CallerTail(id string, maxBytes int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || maxBytes <= 0 {
		return nil
	}
	all := flatten(s.callerAudio, s.callerBytes)
	if len(all) <= maxBytes {
		return all
	}
	return all[len(all)-maxBytes:]
}

// RawAll returns a flattened copy of every received chunk.
func (r *Registry) RawAll(id string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	var total int
	for _, c := range s.rawAudio {
		total += len(c)
	}
	return flatten(s.rawAudio, total)
}

// Scores returns copies of the accumulated score sequences.
func (r *Registry) Scores(id string) (match, fake []float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, found := r.sessions[id]
	if !found {
		return nil, nil, false
	}
	match = append([]float64(nil), s.matchScores...)
	fake = append([]float64(nil), s.fakeScores...)
	return match, fake, true
}

// SEResults returns a copy of the accumulated social-engineering verdicts.
func (r *Registry) SEResults(id string) []SEResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	return append([]SEResult(nil), s.seResults...)
}

// Close marks the session inactive. Idempotent; the session stays in the
// registry until evicted or deleted.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.active = false
	}
}

// Delete removes the session entirely. Idempotent.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Count returns the number of stored sessions, active or not.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func viewOf(s *session) View {
	return View{
		ID:        s.id,
		UserID:    s.userID,
		StartTime: s.startTime,
		Elapsed:   s.elapsed,
		Active:    s.active,
	}
}

func cloneChunk(chunk []byte) []byte {
	out := make([]byte, len(chunk))
	copy(out, chunk)
	return out
}

func flatten(chunks [][]byte, total int) []byte {
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func validScore(score float64) bool {
	return !math.IsNaN(score) && score >= 0 && score <= 1
}
