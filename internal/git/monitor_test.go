package git

import (
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrail/codetrail/internal/models"
)

func TestCheckForCommitFiresOncePerHash(t *testing.T) {
	dir, repo := initRepo(t)
	first := commitFile(t, repo, dir, "main.go", "package main", "initial commit")

	monitor := NewMonitor(NewReader(dir), dir, time.Hour)
	var seen []models.CommitInfo
	unsubscribe := monitor.OnCommit(func(info models.CommitInfo) {
		seen = append(seen, info)
	})

	monitor.checkForCommit()
	require.Len(t, seen, 1)
	assert.Equal(t, first, seen[0].Hash)

	monitor.checkForCommit()
	assert.Len(t, seen, 1, "an unchanged HEAD must not re-fire")

	second := commitFile(t, repo, dir, "main.go", "package main\n\nfunc main() {}", "add main")
	monitor.checkForCommit()
	require.Len(t, seen, 2)
	assert.Equal(t, second, seen[1].Hash)

	unsubscribe()
	commitFile(t, repo, dir, "main.go", "package main\n", "tweak")
	monitor.checkForCommit()
	assert.Len(t, seen, 2, "unsubscribed handlers must not fire")
}

func TestStartRecordsCurrentHeadAsSeen(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "main.go", "package main", "initial commit")

	monitor := NewMonitor(NewReader(dir), dir, time.Hour)
	var mu sync.Mutex
	var seen []models.CommitInfo
	monitor.OnCommit(func(info models.CommitInfo) {
		mu.Lock()
		seen = append(seen, info)
		mu.Unlock()
	})

	require.NoError(t, monitor.Start())
	defer monitor.Stop()

	monitor.checkForCommit()
	mu.Lock()
	assert.Empty(t, seen, "commits made before startup are already seen")
	mu.Unlock()

	hash := commitFile(t, repo, dir, "other.go", "package main", "post-start commit")
	monitor.checkForCommit()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0].Hash == hash
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartRejectsDoubleStart(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "main.go", "package main", "initial commit")

	monitor := NewMonitor(NewReader(dir), dir, time.Hour)
	require.NoError(t, monitor.Start())
	defer monitor.Stop()

	assert.Error(t, monitor.Start())
}

func TestIsRefUpdate(t *testing.T) {
	assert.True(t, isRefUpdate(fsnotify.Event{Name: "/repo/.git/refs/heads/main", Op: fsnotify.Write}))
	assert.True(t, isRefUpdate(fsnotify.Event{Name: "/repo/.git/refs/heads/feature", Op: fsnotify.Create}))
	assert.True(t, isRefUpdate(fsnotify.Event{Name: "/repo/.git/HEAD", Op: fsnotify.Write}))
	assert.False(t, isRefUpdate(fsnotify.Event{Name: "/repo/.git/index", Op: fsnotify.Write}))
	assert.False(t, isRefUpdate(fsnotify.Event{Name: "/repo/.git/refs/heads/main", Op: fsnotify.Chmod}))
}
