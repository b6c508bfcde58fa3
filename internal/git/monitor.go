package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codetrail/codetrail/internal/logger"
	"github.com/codetrail/codetrail/internal/models"
	"github.com/codetrail/codetrail/internal/recovery"
)

// CommitHandler receives each newly detected commit exactly once per
// monitor instance.
type CommitHandler func(models.CommitInfo)

// Monitor watches a repository for new commits two ways: an fsnotify
// watch on .git/refs/heads and .git/HEAD for immediacy, and a periodic
// poll comparing the last seen hash as a backup for editors and git
// configurations that bypass ref file writes (packed refs).
type Monitor struct {
	reader       *Reader
	repoPath     string
	pollInterval time.Duration

	mu           sync.Mutex
	handlers     map[int]CommitHandler
	nextHandler  int
	lastSeenHash string
	running      bool

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
}

// NewMonitor builds a monitor over the repository at repoPath.
func NewMonitor(reader *Reader, repoPath string, pollInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &Monitor{
		reader:       reader,
		repoPath:     repoPath,
		pollInterval: pollInterval,
		handlers:     make(map[int]CommitHandler),
		stopChan:     make(chan struct{}),
	}
}

// OnCommit registers a handler and returns an unsubscribe func.
func (m *Monitor) OnCommit(handler CommitHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextHandler
	m.nextHandler++
	m.handlers[id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}
}

// Start begins watching. The current HEAD at start time is recorded as
// already seen so only commits made after startup fire handlers.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("commit monitor is already running")
	}
	m.running = true
	m.mu.Unlock()

	if info, err := m.reader.CurrentCommitInfo(); err == nil && info != nil {
		m.mu.Lock()
		m.lastSeenHash = info.Hash
		m.mu.Unlock()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create commit watcher: %w", err)
	}
	m.watcher = watcher

	gitDir := filepath.Join(m.repoPath, ".git")
	for _, dir := range []string{filepath.Join(gitDir, "refs", "heads"), gitDir} {
		if _, err := os.Stat(dir); err == nil {
			if err := watcher.Add(dir); err != nil {
				logger.Warnf("⚠️  Failed to watch %s: %v", dir, err)
			}
		}
	}

	logger.Infof("👀 Watching %s for commits", m.repoPath)

	recovery.SafeGo("commit-monitor-fs", m.watchLoop)
	recovery.SafeGo("commit-monitor-poll", m.pollLoop)
	return nil
}

// Stop halts both watch paths.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopChan)
	if m.watcher != nil {
		m.watcher.Close()
	}
}

func (m *Monitor) watchLoop() {
	for {
		select {
		case <-m.stopChan:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if isRefUpdate(event) {
				m.checkForCommit()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("⚠️  Commit watcher error: %v", err)
		}
	}
}

func (m *Monitor) pollLoop() {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.checkForCommit()
		}
	}
}

// isRefUpdate filters watcher noise down to branch ref or HEAD writes.
func isRefUpdate(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	name := filepath.ToSlash(event.Name)
	return filepath.Base(name) == "HEAD" || strings.Contains(name, "refs/heads/")
}

// checkForCommit reads HEAD and fires handlers when the hash moved.
func (m *Monitor) checkForCommit() {
	info, err := m.reader.CurrentCommitInfo()
	if err != nil {
		logger.Warnf("⚠️  Failed to read commit info: %v", err)
		return
	}
	if info == nil {
		return
	}

	m.mu.Lock()
	if info.Hash == m.lastSeenHash {
		m.mu.Unlock()
		return
	}
	m.lastSeenHash = info.Hash
	handlers := make([]CommitHandler, 0, len(m.handlers))
	for _, handler := range m.handlers {
		handlers = append(handlers, handler)
	}
	m.mu.Unlock()

	logger.Infof("📝 Detected commit %.8s on %s", info.Hash, info.Branch)
	for _, handler := range handlers {
		handler(*info)
	}
}
