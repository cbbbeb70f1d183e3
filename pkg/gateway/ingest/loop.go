// Package ingest runs the per-connection streaming state machine. Each
// WebSocket connection carries raw PCM audio for one session; the loop
// classifies every chunk against the script timeline, accumulates caller
// audio, and schedules the three analysis pipelines on their cadences.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/callshield/callshield/pkg/core/audio"
	"github.com/callshield/callshield/pkg/core/script"
	"github.com/callshield/callshield/pkg/gateway/analyzers"
	"github.com/callshield/callshield/pkg/gateway/config"
	"github.com/callshield/callshield/pkg/gateway/registry"
)

// CloseSessionNotFound is sent when the session vanishes mid-stream.
const CloseSessionNotFound = 4404

// Conn is the subset of *websocket.Conn the loop needs. WriteControl is
// safe to call concurrently with reads, which is what lets the close
// frame go out from any exit path.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// MatchAnalyzer scores caller audio against the user's voiceprint.
type MatchAnalyzer interface {
	MatchScore(ctx context.Context, userID string, wav []byte) (float64, error)
}

// FakeAnalyzer scores caller audio for synthetic speech.
type FakeAnalyzer interface {
	Detect(ctx context.Context, wav []byte) (float64, error)
}

// SocialAnalyzer produces a social engineering verdict for caller audio.
type SocialAnalyzer interface {
	Detect(ctx context.Context, wav []byte) (registry.SEResult, error)
}

// Deps carries everything a Loop needs. All fields except Now are
// required.
type Deps struct {
	Conn     Conn
	Logger   *slog.Logger
	Registry *registry.Registry
	Timeline *script.Timeline
	Match    MatchAnalyzer
	Fake     FakeAnalyzer
	Social   SocialAnalyzer
	Audio    audio.Config
	Cfg      config.Config
	Now      func() time.Time
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

type analyzerKind int

const (
	kindMatch analyzerKind = iota
	kindFake
	kindSE
)

type analyzerResult struct {
	kind analyzerKind
	// at is the session elapsed time when the analysis was dispatched.
	at    time.Duration
	score float64
	se    registry.SEResult
	err   error
}

// Loop is the state machine for one streaming connection.
type Loop struct {
	deps      Deps
	sessionID string
	userID    string

	state    State
	seBuffer *audio.Buffer

	matchInFlight  bool
	fakeInFlight   bool
	seInFlight     bool
	lastFakeAt     time.Duration
	lastSEAt       time.Duration
	callerTimeouts int

	resultCh chan analyzerResult
	done     chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewLoop(sessionID, userID string, deps Deps) *Loop {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Loop{
		deps:      deps,
		sessionID: sessionID,
		userID:    userID,
		state:     StateConnecting,
		seBuffer:  audio.NewBuffer(deps.Audio),
		resultCh:  make(chan analyzerResult, 8),
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle phase. Not synchronized; intended
// for observation after Run returns and from tests.
func (l *Loop) State() State {
	return l.state
}

// Warn sends an advisory frame to the client. Used by graceful shutdown
// to announce that the connection is about to be cancelled.
func (l *Loop) Warn(message string) error {
	payload, err := json.Marshal(map[string]string{"type": "warning", "message": message})
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.deps.Conn.WriteMessage(websocket.TextMessage, payload)
}

// Run drives the connection until the caller disconnects, the script
// completes, timeouts accumulate, or ctx is cancelled. It always leaves
// the session marked inactive and the connection closed. Once the
// upgrade hijacks the connection the HTTP recovery middleware can no
// longer reach it, so Run contains its own faults and closes with 1011.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			l.deps.Logger.Error("stream panic", "session_id", l.sessionID, "panic", v)
			l.finish(websocket.CloseInternalServerErr, "internal error")
		}
		l.state = StateClosed
	}()

	l.state = StateStreaming

	readCh := make(chan inboundFrame, 64)
	go l.readLoop(ctx, readCh)

	timer := time.NewTimer(l.deps.Cfg.ReceiveTimeout)
	defer timer.Stop()

	for l.state == StateStreaming {
		select {
		case <-ctx.Done():
			l.finish(websocket.CloseNormalClosure, "server shutting down")

		case res := <-l.resultCh:
			l.applyResult(res)

		case <-timer.C:
			l.onReceiveTimeout()
			resetTimer(timer, l.deps.Cfg.ReceiveTimeout)

		case frame, ok := <-readCh:
			if !ok {
				l.finish(websocket.CloseNormalClosure, "stream ended")
				continue
			}
			if frame.err != nil {
				l.onReadError(frame.err)
				continue
			}
			l.onFrame(frame)
			resetTimer(timer, l.deps.Cfg.ReceiveTimeout)
		}
	}
}

func (l *Loop) readLoop(ctx context.Context, out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := l.deps.Conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-ctx.Done():
			case <-l.done:
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-ctx.Done():
			return
		case <-l.done:
			return
		}
	}
}

func (l *Loop) onReadError(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		l.finish(websocket.CloseNormalClosure, "client closed")
		return
	}
	l.deps.Logger.Warn("read error", "session_id", l.sessionID, "error", err)
	l.finish(websocket.CloseNormalClosure, "client disconnected")
}

func (l *Loop) onReceiveTimeout() {
	elapsed, ok := l.deps.Registry.TouchElapsed(l.sessionID)
	if !ok {
		l.finish(CloseSessionNotFound, "session not found")
		return
	}
	if l.scriptComplete(elapsed) {
		l.finish(websocket.CloseNormalClosure, "script complete")
		return
	}

	window := l.deps.Timeline.WindowAt(elapsed)
	if window.Role != script.RoleCaller {
		// Silence during an agent window is expected; keep waiting.
		return
	}

	l.callerTimeouts++
	l.deps.Logger.Debug("caller receive timeout",
		"session_id", l.sessionID,
		"count", l.callerTimeouts,
		"max", l.deps.Cfg.MaxCallerTimeouts,
	)
	if l.callerTimeouts >= l.deps.Cfg.MaxCallerTimeouts {
		l.finish(websocket.CloseNormalClosure, "caller inactive")
	}
}

func (l *Loop) onFrame(frame inboundFrame) {
	if frame.messageType != websocket.BinaryMessage {
		// Text frames are tolerated as client keepalives.
		return
	}
	if len(frame.data) > l.deps.Cfg.MaxAudioFrameBytes {
		l.finish(websocket.CloseMessageTooBig, "audio frame too large")
		return
	}
	if len(frame.data) == 0 {
		return
	}

	l.callerTimeouts = 0

	elapsed, ok := l.deps.Registry.TouchElapsed(l.sessionID)
	if !ok {
		l.finish(CloseSessionNotFound, "session not found")
		return
	}

	l.deps.Registry.AppendRaw(l.sessionID, frame.data)

	if l.scriptComplete(elapsed) {
		l.finish(websocket.CloseNormalClosure, "script complete")
		return
	}

	window := l.deps.Timeline.WindowAt(elapsed)
	if window.Role != script.RoleCaller {
		return
	}

	l.deps.Registry.AppendCaller(l.sessionID, frame.data)
	l.seBuffer.Write(frame.data)

	l.maybeTriggerMatch()
	l.maybeTriggerFake(elapsed)
	l.maybeTriggerSE(elapsed)
}

func (l *Loop) scriptComplete(elapsed time.Duration) bool {
	return elapsed >= l.deps.Timeline.TotalScriptedDuration()+l.deps.Cfg.GracePeriod
}

func (l *Loop) maybeTriggerMatch() {
	if l.matchInFlight || l.deps.Match == nil {
		return
	}
	minSamples := l.deps.Audio.SamplesForDuration(l.deps.Cfg.MatchMinDuration)
	if !audio.HasMinDuration(l.deps.Registry.CallerBytes(l.sessionID), minSamples, l.deps.Audio) {
		return
	}

	windowBytes := l.deps.Audio.BytesForDuration(l.deps.Cfg.MatchWindow)
	pcm := l.deps.Registry.CallerTail(l.sessionID, windowBytes)
	if len(pcm) == 0 {
		return
	}
	wav := audio.EncodeWAV(pcm, l.deps.Audio)

	l.matchInFlight = true
	go l.dispatch(func(ctx context.Context) analyzerResult {
		score, err := l.deps.Match.MatchScore(ctx, l.userID, wav)
		return analyzerResult{kind: kindMatch, score: score, err: err}
	})
}

func (l *Loop) maybeTriggerFake(elapsed time.Duration) {
	if l.fakeInFlight || l.deps.Fake == nil {
		return
	}
	if elapsed-l.lastFakeAt < l.deps.Cfg.FakeInterval {
		return
	}
	minSamples := l.deps.Audio.SamplesForDuration(l.deps.Cfg.FakeMinDuration)
	if !audio.HasMinDuration(l.deps.Registry.CallerBytes(l.sessionID), minSamples, l.deps.Audio) {
		return
	}

	pcm := l.deps.Registry.CallerAll(l.sessionID)
	if len(pcm) == 0 {
		return
	}
	wav := audio.EncodeWAV(pcm, l.deps.Audio)

	l.fakeInFlight = true
	go l.dispatch(func(ctx context.Context) analyzerResult {
		score, err := l.deps.Fake.Detect(ctx, wav)
		return analyzerResult{kind: kindFake, at: elapsed, score: score, err: err}
	})
}

func (l *Loop) maybeTriggerSE(elapsed time.Duration) {
	if l.seInFlight || l.deps.Social == nil {
		return
	}
	if elapsed-l.lastSEAt < l.deps.Cfg.SEInterval {
		return
	}
	minSamples := l.deps.Audio.SamplesForDuration(l.deps.Cfg.SEMinDuration)
	if !audio.HasMinDuration(l.seBuffer.Len(), minSamples, l.deps.Audio) {
		return
	}

	pcm := l.seBuffer.Bytes()
	wav := audio.EncodeWAV(pcm, l.deps.Audio)

	// The window is consumed on dispatch whatever the analysis outcome.
	l.seBuffer.Clear()
	l.lastSEAt = elapsed

	l.seInFlight = true
	go l.dispatch(func(ctx context.Context) analyzerResult {
		result, err := l.deps.Social.Detect(ctx, wav)
		return analyzerResult{kind: kindSE, at: elapsed, se: result, err: err}
	})
}

func (l *Loop) dispatch(fn func(context.Context) analyzerResult) {
	ctx, cancel := context.WithTimeout(context.Background(), l.deps.Cfg.AnalyzerTimeout)
	defer cancel()

	res := fn(ctx)
	select {
	case l.resultCh <- res:
	case <-l.done:
	}
}

func (l *Loop) applyResult(res analyzerResult) {
	switch res.kind {
	case kindMatch:
		l.matchInFlight = false
		if res.err != nil {
			l.deps.Logger.Warn("speaker match failed", "session_id", l.sessionID, "error", res.err)
			return
		}
		l.deps.Registry.AppendMatchScore(l.sessionID, res.score)

	case kindFake:
		l.fakeInFlight = false
		if res.err != nil {
			l.deps.Logger.Warn("deepfake detection failed", "session_id", l.sessionID, "error", res.err)
			return
		}
		l.lastFakeAt = res.at
		l.deps.Registry.AppendFakeScore(l.sessionID, res.score)

	case kindSE:
		l.seInFlight = false
		if res.err != nil {
			if !errors.Is(res.err, analyzers.ErrTranscriptTooShort) {
				l.deps.Logger.Warn("social engineering analysis failed", "session_id", l.sessionID, "error", res.err)
			}
			return
		}
		l.deps.Registry.AppendSEResult(l.sessionID, res.se)
	}
}

// finish runs the closure sequence exactly once: mark the session
// inactive, send the close frame, release the connection.
func (l *Loop) finish(code int, reason string) {
	l.closeOnce.Do(func() {
		l.state = StateClosing
		close(l.done)

		l.deps.Registry.Close(l.sessionID)

		deadline := l.deps.Now().Add(5 * time.Second)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = l.deps.Conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = l.deps.Conn.Close()

		l.deps.Logger.Info("stream closed",
			"session_id", l.sessionID,
			"code", code,
			"reason", reason,
		)
	})
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
