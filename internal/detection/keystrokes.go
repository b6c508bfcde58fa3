package detection

import (
	"sync"
	"time"
)

const (
	keystrokeHistorySize = 20
	typingSpeedWindow    = 10 * time.Second
)

// keystrokeTracker keeps a small per-document ring buffer of keystroke
// timestamps. Its only job is to estimate recent typing speed: a large
// insertion arriving with zero recent keystrokes implies paste or
// generation rather than manual typing.
type keystrokeTracker struct {
	mu      sync.Mutex
	buffers map[string]*keystrokeRing
}

type keystrokeRing struct {
	timestamps [keystrokeHistorySize]time.Time
	next       int
	filled     bool
}

func newKeystrokeTracker() *keystrokeTracker {
	return &keystrokeTracker{buffers: make(map[string]*keystrokeRing)}
}

// RecordKeystroke notes a small, human-scale edit on a document.
func (t *keystrokeTracker) RecordKeystroke(documentID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ring, ok := t.buffers[documentID]
	if !ok {
		ring = &keystrokeRing{}
		t.buffers[documentID] = ring
	}
	ring.timestamps[ring.next] = at
	ring.next = (ring.next + 1) % keystrokeHistorySize
	if ring.next == 0 {
		ring.filled = true
	}
}

// TypingSpeed returns recent keystrokes per second for a document,
// measured over the trailing window. Zero means no recent typing.
func (t *keystrokeTracker) TypingSpeed(documentID string, now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	ring, ok := t.buffers[documentID]
	if !ok {
		return 0
	}

	count := 0
	limit := keystrokeHistorySize
	if !ring.filled {
		limit = ring.next
	}
	cutoff := now.Add(-typingSpeedWindow)
	for i := 0; i < limit; i++ {
		if ring.timestamps[i].After(cutoff) {
			count++
		}
	}
	return float64(count) / typingSpeedWindow.Seconds()
}

// Forget drops state for a document, e.g. when it is closed.
func (t *keystrokeTracker) Forget(documentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buffers, documentID)
}
