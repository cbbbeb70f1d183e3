package audio

import (
	"sync"
	"time"
)

// Buffer accumulates PCM audio chunks. It backs the rolling buffer that
// the social-engineering cadence consumes and clears between checks.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	config Config
}

// NewBuffer creates an empty buffer for audio in the given format.
func NewBuffer(config Config) *Buffer {
	return &Buffer{config: config}
}

// Write appends audio data to the buffer.
func (b *Buffer) Write(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, data...)
}

// Bytes returns a copy of all buffered audio data.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the current buffer size in bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Duration returns the play time of the buffered audio.
func (b *Buffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config.Duration(len(b.data))
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}
