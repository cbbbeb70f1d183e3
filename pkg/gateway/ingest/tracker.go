package ingest

import (
	"context"
	"sync"
)

// Handle exposes the control surface of a live stream loop to the
// lifecycle manager.
type Handle struct {
	Cancel func()
	Warn   func(message string) error
}

// Tracker keeps handles for every live streaming connection so graceful
// shutdown can warn callers, cancel loops, and wait for them to drain.
type Tracker struct {
	mu      sync.Mutex
	streams map[string]*trackedStream
	wg      sync.WaitGroup
}

type trackedStream struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{streams: make(map[string]*trackedStream)}
}

// Register adds a stream handle keyed by session id. Registering over an
// existing id releases the previous entry. The returned function
// unregisters; it is safe to call more than once.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedStream{handle: h}

	t.mu.Lock()
	if t.streams == nil {
		t.streams = make(map[string]*trackedStream)
	}
	old := t.streams[sessionID]
	t.streams[sessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(sessionID, old)
	}

	return func() { t.unregister(sessionID, entry) }
}

func (t *Tracker) unregister(sessionID string, entry *trackedStream) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.streams != nil && t.streams[sessionID] == entry {
			delete(t.streams, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.streams)
}

// WarnAll delivers a warning frame to every live stream.
func (t *Tracker) WarnAll(message string) (sent int) {
	if t == nil {
		return 0
	}

	var warns []func(message string) error
	t.mu.Lock()
	for _, entry := range t.streams {
		if entry == nil || entry.handle.Warn == nil {
			continue
		}
		warns = append(warns, entry.handle.Warn)
	}
	t.mu.Unlock()

	for _, warn := range warns {
		_ = warn(message)
		sent++
	}
	return sent
}

// CancelAll cancels every live stream loop.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.streams {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered stream has unregistered, or ctx
// expires. Returns true when fully drained.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
