package queue

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	q := New(2, time.Minute, nil)

	var executed []string
	var mu sync.Mutex
	record := func(name string) Task {
		return Task{Name: name, Run: func() error {
			mu.Lock()
			executed = append(executed, name)
			mu.Unlock()
			return nil
		}}
	}

	// capacity is 2x batch size = 4
	for i := 0; i < 6; i++ {
		q.Enqueue(record(fmt.Sprintf("task-%d", i)))
	}

	assert.Equal(t, 4, q.Len())
	assert.Equal(t, int64(2), q.Dropped())

	q.DrainOnce()
	q.DrainOnce()
	assert.Zero(t, q.Len())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, executed, 4)
	assert.NotContains(t, executed, "task-0")
	assert.NotContains(t, executed, "task-1")
}

func TestDrainOnceRunsAtMostBatchSize(t *testing.T) {
	q := New(3, time.Minute, nil)

	var runs int64
	for i := 0; i < 5; i++ {
		q.Enqueue(Task{Name: "task", Run: func() error {
			atomic.AddInt64(&runs, 1)
			return nil
		}})
	}

	q.DrainOnce()
	assert.Equal(t, int64(3), atomic.LoadInt64(&runs))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, int64(3), q.Completed())
}

func TestDrainOnceSkipsQuietHours(t *testing.T) {
	quiet := true
	q := New(2, time.Minute, func(time.Time) bool { return quiet })

	var runs int64
	q.Enqueue(Task{Name: "task", Run: func() error {
		atomic.AddInt64(&runs, 1)
		return nil
	}})

	q.DrainOnce()
	assert.Zero(t, atomic.LoadInt64(&runs), "quiet hours must defer work")
	assert.Equal(t, 1, q.Len(), "deferred tasks stay queued")

	quiet = false
	q.DrainOnce()
	assert.Equal(t, int64(1), atomic.LoadInt64(&runs))
	assert.Zero(t, q.Len())
}

func TestFailedTasksAreNotRetriedOrCounted(t *testing.T) {
	q := New(2, time.Minute, nil)

	var attempts int64
	q.Enqueue(Task{Name: "doomed", Run: func() error {
		atomic.AddInt64(&attempts, 1)
		return errors.New("remote unavailable")
	}})

	q.DrainOnce()
	q.DrainOnce()
	assert.Equal(t, int64(1), atomic.LoadInt64(&attempts), "failures are dropped, not retried")
	assert.Zero(t, q.Completed())
	assert.Zero(t, q.Len())
}

func TestPanickingTaskDoesNotKillDrain(t *testing.T) {
	q := New(2, time.Minute, nil)

	var survived int64
	q.Enqueue(Task{Name: "panics", Run: func() error { panic("boom") }})
	q.Enqueue(Task{Name: "fine", Run: func() error {
		atomic.AddInt64(&survived, 1)
		return nil
	}})

	q.DrainOnce()
	assert.Equal(t, int64(1), atomic.LoadInt64(&survived))
	assert.Equal(t, int64(1), q.Completed())
}

func TestEnqueueIgnoresNilRun(t *testing.T) {
	q := New(2, time.Minute, nil)
	q.Enqueue(Task{Name: "empty"})
	assert.Zero(t, q.Len())
}

func TestStartStopIdempotent(t *testing.T) {
	q := New(2, 10*time.Millisecond, nil)
	q.Start()
	q.Start()

	var runs int64
	q.Enqueue(Task{Name: "task", Run: func() error {
		atomic.AddInt64(&runs, 1)
		return nil
	}})

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) == 1
	}, time.Second, 5*time.Millisecond)

	q.Stop()
	q.Stop()
}
