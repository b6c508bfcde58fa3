// Package queue implements the bounded background task queue that keeps
// slow work (sanitization, remote saves, stat recomputes) off the
// change-ingestion path. It is a best-effort pipeline: overflow drops
// the oldest entries and failed tasks are never retried.
package queue

import (
	"sync"
	"time"

	"github.com/codetrail/codetrail/internal/logger"
	"github.com/codetrail/codetrail/internal/recovery"
)

// Task is a deferred operation. Name exists only for logs.
type Task struct {
	Name string
	Run  func() error
}

const defaultDrainInterval = 30 * time.Second

// Queue drains enqueued tasks in batches on a fixed interval. Drains
// are single-flight: a tick that arrives while a drain is in progress
// is skipped. During quiet hours ticks execute nothing and the queue
// keeps its contents.
type Queue struct {
	mu       sync.Mutex
	tasks    []Task
	draining bool
	running  bool

	batchSize int
	interval  time.Duration
	quiet     func(time.Time) bool

	completed int64
	dropped   int64

	stopChan chan struct{}
	now      func() time.Time
}

// New builds a queue. batchSize bounds both the number of tasks run
// concurrently per drain and (doubled) the queue length. quiet may be
// nil, meaning no quiet hours.
func New(batchSize int, interval time.Duration, quiet func(time.Time) bool) *Queue {
	if batchSize <= 0 {
		batchSize = 5
	}
	if interval <= 0 {
		interval = defaultDrainInterval
	}
	return &Queue{
		batchSize: batchSize,
		interval:  interval,
		quiet:     quiet,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// Enqueue appends a task. At 2x the batch size the oldest entry is
// dropped: freshness over completeness.
func (q *Queue) Enqueue(task Task) {
	if task.Run == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tasks = append(q.tasks, task)
	if limit := q.batchSize * 2; len(q.tasks) > limit {
		dropped := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.dropped++
		logger.Warnf("⚠️  Background queue full, dropping oldest task %q", dropped.Name)
	}
}

// Start launches the periodic drain loop.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	recovery.SafeGo("queue-drain", func() {
		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stopChan:
				return
			case <-ticker.C:
				q.DrainOnce()
			}
		}
	})
}

// Stop cancels the drain loop. In-flight tasks are not interrupted;
// they are expected to finish well before the next tick would have run.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}
	q.running = false
	close(q.stopChan)
}

// DrainOnce runs one drain cycle: up to batchSize tasks concurrently,
// each failure caught and logged individually. Skipped entirely while
// another drain is running or inside quiet hours.
func (q *Queue) DrainOnce() {
	now := q.now()
	if q.quiet != nil && q.quiet(now) {
		logger.Debugf("🌙 Quiet hours, deferring %d queued tasks", q.Len())
		return
	}

	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true

	count := len(q.tasks)
	if count > q.batchSize {
		count = q.batchSize
	}
	batch := make([]Task, count)
	copy(batch, q.tasks[:count])
	q.tasks = q.tasks[count:]
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	if len(batch) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, task := range batch {
		wg.Add(1)
		task := task
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("🚨 Background task %q panicked: %v", task.Name, r)
				}
			}()
			if err := task.Run(); err != nil {
				logger.Warnf("⚠️  Background task %q failed: %v", task.Name, err)
				return
			}
			q.mu.Lock()
			q.completed++
			q.mu.Unlock()
		}()
	}
	wg.Wait()
	logger.Debugf("🔄 Drained %d background tasks", len(batch))
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Completed returns the count of successfully finished tasks.
func (q *Queue) Completed() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Dropped returns the count of tasks lost to overflow.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
