// Package correlator wires the detection engine, session store,
// background queue and the VCS/storage/sanitizer collaborators into the
// pipeline described in the project README: editor change events become
// classified interactions, commits finalize sessions, and finalized
// sessions are sanitized and archived off the editor path.
package correlator

import (
	"fmt"
	"time"

	"github.com/codetrail/codetrail/internal/config"
	"github.com/codetrail/codetrail/internal/detection"
	"github.com/codetrail/codetrail/internal/git"
	"github.com/codetrail/codetrail/internal/logger"
	"github.com/codetrail/codetrail/internal/models"
	"github.com/codetrail/codetrail/internal/quality"
	"github.com/codetrail/codetrail/internal/queue"
	"github.com/codetrail/codetrail/internal/recovery"
	"github.com/codetrail/codetrail/internal/sanitize"
	"github.com/codetrail/codetrail/internal/session"
	"github.com/codetrail/codetrail/internal/storage"
)

// EventsEmitter receives pipeline milestones for fan-out to listeners.
// The SSE handler implements it; a nil emitter disables fan-out.
type EventsEmitter interface {
	Emit(eventType string, payload any)
}

// Event types emitted on the pipeline.
const (
	EventInteractionRecorded = "interaction:recorded"
	EventCommitDetected      = "commit:detected"
	EventSessionOpened       = "session:opened"
	EventSessionFinalized    = "session:finalized"
	EventSessionAbandoned    = "session:abandoned"
	EventArchiveSaved        = "archive:saved"
)

const (
	idleCheckInterval   = time.Minute
	maintenanceInterval = 5 * time.Minute
	snippetLimit        = 500
)

// Correlator owns the pipeline state and its timers. Constructed once
// at startup, stopped explicitly on shutdown.
type Correlator struct {
	settings *config.Settings

	engine    *detection.Engine
	store     *session.Store
	tasks     *queue.Queue
	sanitizer *sanitize.Sanitizer

	reader  *git.Reader
	monitor *git.Monitor
	remote  *storage.GitHubClient

	stats   *statsBook
	emitter EventsEmitter

	unsubscribe func()
	stopChan    chan struct{}
	started     bool
}

// New assembles a correlator from its collaborators.
func New(settings *config.Settings, engine *detection.Engine, store *session.Store,
	tasks *queue.Queue, sanitizer *sanitize.Sanitizer, reader *git.Reader,
	monitor *git.Monitor, remote *storage.GitHubClient) *Correlator {
	return &Correlator{
		settings:  settings,
		engine:    engine,
		store:     store,
		tasks:     tasks,
		sanitizer: sanitizer,
		reader:    reader,
		monitor:   monitor,
		remote:    remote,
		stats:     newStatsBook(),
		stopChan:  make(chan struct{}),
	}
}

// SetEmitter attaches the event fan-out sink.
func (c *Correlator) SetEmitter(emitter EventsEmitter) {
	c.emitter = emitter
}

// Start subscribes to commit events and launches the idle-timeout and
// maintenance timers.
func (c *Correlator) Start() error {
	if c.started {
		return fmt.Errorf("correlator is already running")
	}
	c.started = true

	c.unsubscribe = c.monitor.OnCommit(c.handleCommit)
	if err := c.monitor.Start(); err != nil {
		return fmt.Errorf("failed to start commit monitor: %w", err)
	}
	c.tasks.Start()

	recovery.SafeGo("correlator-timers", c.timerLoop)

	logger.Infof("🚀 Correlator started (auto-correlation: %v, sensitivity: %s)",
		c.settings.AutoCorrelation, c.settings.Sensitivity)
	return nil
}

// Stop cancels timers and subscriptions. In-memory session state is
// dropped by design; only archived sessions persist.
func (c *Correlator) Stop() {
	if !c.started {
		return
	}
	c.started = false
	close(c.stopChan)
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.monitor.Stop()
	c.tasks.Stop()
	logger.Infof("🛑 Correlator stopped")
}

func (c *Correlator) timerLoop() {
	idle := time.NewTicker(idleCheckInterval)
	maintenance := time.NewTicker(maintenanceInterval)
	defer idle.Stop()
	defer maintenance.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case <-idle.C:
			if c.store.CheckIdleTimeout() {
				c.emit(EventSessionAbandoned, nil)
				c.emit(EventSessionOpened, c.store.Current())
			}
		case <-maintenance.C:
			c.store.CleanupHistory(c.settings.MaxSessionHistory)
			c.tasks.Enqueue(queue.Task{
				Name: "recompute-stats",
				Run: func() error {
					c.stats.snapshot(c.tasks.Completed(), c.tasks.Dropped())
					return nil
				},
			})
		}
	}
}

// HandleChange runs detection on a change event and records every
// detected candidate as its own interaction. This is the synchronous
// editor-facing path: pattern matching only, no blocking I/O.
func (c *Correlator) HandleChange(event models.ChangeEvent) []models.DetectionCandidate {
	candidates := c.engine.Evaluate(event)

	detected := int64(0)
	for _, candidate := range candidates {
		if !candidate.Detected {
			continue
		}
		detected++
		interaction := models.Interaction{
			Prompt:     detection.InferPrompt(event, candidate.Type),
			Response:   truncate(event.InsertedText, snippetLimit),
			Provider:   candidate.Provider,
			Type:       candidate.Type,
			Confidence: candidate.Confidence,
		}
		if event.FilePath != "" {
			interaction.FileContext = &models.FileContext{
				Path:           event.FilePath,
				Language:       event.Language,
				SelectionStart: event.RangeStart,
				SelectionEnd:   event.RangeStart + len(event.InsertedText),
				Snippet:        truncate(event.InsertedText, snippetLimit),
			}
		}
		stored := c.store.AddInteraction(interaction)
		c.emit(EventInteractionRecorded, stored)
	}
	if detected > 0 {
		c.stats.addInteractions(detected)
	}
	return candidates
}

// RecordInteraction captures a manually reported interaction (the only
// source of chat-typed interactions).
func (c *Correlator) RecordInteraction(partial models.Interaction) models.Interaction {
	if partial.Provider == "" {
		partial.Provider = models.ProviderOther
	}
	if partial.Type == "" {
		partial.Type = models.InteractionChat
	}
	stored := c.store.AddInteraction(partial)
	c.stats.addInteractions(1)
	c.emit(EventInteractionRecorded, stored)
	return stored
}

// handleCommit is the automatic path: failures are logged and skipped,
// never surfaced to the editor.
func (c *Correlator) handleCommit(info models.CommitInfo) {
	c.emit(EventCommitDetected, info)
	if !c.settings.AutoCorrelation {
		logger.Debugf("⚪ Auto-correlation disabled, ignoring commit %.8s", info.Hash)
		return
	}
	if _, err := c.finalize(info); err != nil {
		logger.Warnf("⚠️  Skipping commit correlation: %v", err)
	}
}

// CorrelateNow is the manual path: collaborator failures are returned
// to the caller. A nil session with nil error means there was nothing
// to finalize.
func (c *Correlator) CorrelateNow() (*models.DevelopmentSession, error) {
	info, err := c.reader.CurrentCommitInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read commit info: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("workspace is not a git repository or has no commits")
	}
	return c.finalize(*info)
}

func (c *Correlator) finalize(info models.CommitInfo) (*models.DevelopmentSession, error) {
	finalized := c.store.FinalizeWithCommit(info)
	if finalized == nil {
		// committing with nothing tracked is a no-op, not an error
		logger.Debugf("⚪ No interactions to correlate with commit %.8s", info.Hash)
		return nil, nil
	}

	c.stats.addSession()
	c.stats.addCommit()

	report := quality.Analyze(finalized)
	logger.Infof("📊 Session %s quality: %s (productivity %.0f, focus %.0f)",
		finalized.ID, report.Overall, report.Productivity, report.Focus)

	c.emit(EventSessionFinalized, finalized)
	c.emit(EventSessionOpened, c.store.Current())
	c.enqueueArchive(finalized)
	return finalized, nil
}

// enqueueArchive defers sanitization and the remote save to the
// background queue so the commit path never blocks on network I/O.
func (c *Correlator) enqueueArchive(finalized *models.DevelopmentSession) {
	record := models.NewArchiveRecord(finalized)
	c.tasks.Enqueue(queue.Task{
		Name: "archive-" + finalized.ID,
		Run: func() error {
			c.sanitizer.SanitizeRecord(record, c.settings.Workspace)
			if !c.remote.IsConfigured() {
				// best-effort automation: skip silently, don't nag
				logger.Debugf("⚪ Remote storage unconfigured, keeping session %s local", finalized.ID)
				return nil
			}
			archive := c.settings.Archive
			path := archivePath(archive.PathPrefix, record)
			saved, err := c.remote.SaveRecord(archive.Owner, archive.Repo, record, path, archive.Branch)
			if err != nil {
				return err
			}
			if saved {
				c.emit(EventArchiveSaved, map[string]string{"session_id": record.SessionID, "path": path})
			}
			return nil
		},
	})
}

// SaveNow archives the given finalized session synchronously, for
// callers that need the save error surfaced instead of logged.
func (c *Correlator) SaveNow(finalized *models.DevelopmentSession) (string, error) {
	record := models.NewArchiveRecord(finalized)
	c.sanitizer.SanitizeRecord(record, c.settings.Workspace)
	if !c.remote.IsConfigured() {
		return "", fmt.Errorf("remote storage not configured: set GITHUB_TOKEN")
	}
	archive := c.settings.Archive
	path := archivePath(archive.PathPrefix, record)
	if _, err := c.remote.SaveRecord(archive.Owner, archive.Repo, record, path, archive.Branch); err != nil {
		return "", err
	}
	c.emit(EventArchiveSaved, map[string]string{"session_id": record.SessionID, "path": path})
	return path, nil
}

// Stats returns a freshly recomputed snapshot.
func (c *Correlator) Stats() models.AutomationStats {
	stats := c.stats.snapshot(c.tasks.Completed(), c.tasks.Dropped())
	stats.QueueDepth = c.tasks.Len()
	return stats
}

// ResetStats clears the counters (explicit maintenance action).
func (c *Correlator) ResetStats() {
	c.stats.reset()
}

// QuietHours resolves the effective quiet window: explicit config wins,
// otherwise the inverse of the inferred working hours.
func (c *Correlator) QuietHours() *config.QuietHours {
	if c.settings.QuietHours != nil {
		return c.settings.QuietHours
	}
	return c.store.Activity().InferredQuietHours()
}

func (c *Correlator) emit(eventType string, payload any) {
	if c.emitter != nil {
		c.emitter.Emit(eventType, payload)
	}
}

func archivePath(prefix string, record *models.ArchiveRecord) string {
	name := fmt.Sprintf("%s-%s.json", record.Timestamp.UTC().Format("2006-01-02T15-04-05"), record.SessionID)
	if prefix == "" {
		return "sessions/" + name
	}
	return prefix + "/" + name
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
