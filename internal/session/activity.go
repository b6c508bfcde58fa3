package session

import (
	"sync"
	"time"

	"github.com/codetrail/codetrail/internal/config"
)

// minActivitySamples gates the working-hours estimate until there is
// enough signal to be better than a guess.
const minActivitySamples = 10

// ActivityTracker keeps per-file last-activity timestamps and a rolling
// estimate of the developer's working-hours window. All state is
// in-memory and rebuilt from scratch each run.
type ActivityTracker struct {
	mu         sync.Mutex
	lastByFile map[string]time.Time
	hourCounts [24]float64
	samples    int
}

func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{lastByFile: make(map[string]time.Time)}
}

// Record notes activity on a file. Hour counts decay slightly on every
// sample so the window follows shifts in routine.
func (t *ActivityTracker) Record(filePath string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if filePath != "" {
		t.lastByFile[filePath] = at
	}
	for i := range t.hourCounts {
		t.hourCounts[i] *= 0.995
	}
	t.hourCounts[at.Hour()]++
	t.samples++
}

// LastActivity returns the last recorded activity time for a file.
func (t *ActivityTracker) LastActivity(filePath string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.lastByFile[filePath]
	return at, ok
}

// WorkingWindow returns the inferred working-hours span as inclusive
// start and exclusive end hours. ok is false until enough samples exist.
func (t *ActivityTracker) WorkingWindow() (start, end int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.workingWindowLocked()
}

func (t *ActivityTracker) workingWindowLocked() (int, int, bool) {
	if t.samples < minActivitySamples {
		return 0, 0, false
	}
	max := 0.0
	for _, count := range t.hourCounts {
		if count > max {
			max = count
		}
	}
	if max == 0 {
		return 0, 0, false
	}
	// active hours are those with at least 20% of the peak
	threshold := max * 0.2
	first, last := -1, -1
	for hour, count := range t.hourCounts {
		if count >= threshold {
			if first == -1 {
				first = hour
			}
			last = hour
		}
	}
	if first == -1 {
		return 0, 0, false
	}
	return first, last + 1, true
}

// IsWorkingHour reports whether t falls inside the inferred window.
// Without enough samples it errs toward true.
func (t *ActivityTracker) IsWorkingHour(at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, end, ok := t.workingWindowLocked()
	if !ok {
		return true
	}
	hour := at.Hour()
	return hour >= start && hour < end
}

// InferredQuietHours derives a quiet window as the inverse of the
// working window. Nil when no window can be inferred yet.
func (t *ActivityTracker) InferredQuietHours() *config.QuietHours {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, end, ok := t.workingWindowLocked()
	if !ok {
		return nil
	}
	return &config.QuietHours{Start: end % 24, End: start}
}
