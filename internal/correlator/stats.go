package correlator

import (
	"sync"
	"time"

	"github.com/codetrail/codetrail/internal/models"
)

// counterOverflowGuard resets all counters long before int64 wraps.
const counterOverflowGuard = int64(1) << 60

// statsBook owns the automation counters. Counters only accumulate;
// effectiveness is recomputed on demand from their current values.
type statsBook struct {
	mu    sync.Mutex
	stats models.AutomationStats
}

func newStatsBook() *statsBook {
	return &statsBook{}
}

func (b *statsBook) addInteractions(n int64) {
	b.add(func(s *models.AutomationStats) { s.InteractionsDetected += n })
}

func (b *statsBook) addSession() {
	b.add(func(s *models.AutomationStats) { s.SessionsMonitored++ })
}

func (b *statsBook) addCommit() {
	b.add(func(s *models.AutomationStats) { s.CommitsCorrelated++ })
}

func (b *statsBook) add(mutate func(*models.AutomationStats)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mutate(&b.stats)
	if b.stats.InteractionsDetected > counterOverflowGuard ||
		b.stats.SessionsMonitored > counterOverflowGuard ||
		b.stats.CommitsCorrelated > counterOverflowGuard {
		b.stats = models.AutomationStats{}
	}
}

// snapshot recomputes effectiveness and returns a copy. completed and
// dropped come from the queue, which owns those counters.
func (b *statsBook) snapshot(completed, dropped int64) models.AutomationStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.BackgroundOperations = completed
	b.stats.DroppedOperations = dropped
	b.stats.Effectiveness = effectiveness(b.stats)
	b.stats.RecomputedAt = time.Now()
	return b.stats
}

func (b *statsBook) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = models.AutomationStats{}
}

// effectiveness blends how often monitored sessions reach a commit with
// how reliably background work completes. Heuristic, in [0,100].
func effectiveness(stats models.AutomationStats) float64 {
	score := 0.0

	if stats.SessionsMonitored > 0 {
		correlationRate := float64(stats.CommitsCorrelated) / float64(stats.SessionsMonitored)
		if correlationRate > 1 {
			correlationRate = 1
		}
		score += correlationRate * 60
	}

	attempted := stats.BackgroundOperations + stats.DroppedOperations
	if attempted > 0 {
		score += float64(stats.BackgroundOperations) / float64(attempted) * 40
	} else if stats.SessionsMonitored > 0 {
		score += 40
	}
	return score
}
