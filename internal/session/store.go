package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codetrail/codetrail/internal/logger"
	"github.com/codetrail/codetrail/internal/models"
)

// Options configures a Store.
type Options struct {
	MaxInteractions int           // sliding-window cap per open session
	MaxHistory      int           // finalized sessions retained
	IdleTimeout     time.Duration // base idle window, adaptively scaled
	Version         string
	Workspace       string
}

const (
	defaultMaxInteractions = 100
	defaultMaxHistory      = 50
	defaultIdleTimeout     = 30 * time.Minute

	workingHoursTimeoutScale = 1.5
	offHoursTimeoutScale     = 0.7
)

// Store is the session state machine. Exactly one session is open at
// all times after construction: finalizing or abandoning the open
// session immediately opens a fresh one. Handlers run on multiple
// goroutines, so every mutation is guarded by the mutex.
type Store struct {
	mu       sync.Mutex
	open     *models.DevelopmentSession
	history  []*models.DevelopmentSession
	activity *ActivityTracker
	opts     Options

	now func() time.Time
}

// NewStore builds a store and opens the first session.
func NewStore(opts Options, activity *ActivityTracker) *Store {
	if opts.MaxInteractions <= 0 {
		opts.MaxInteractions = defaultMaxInteractions
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = defaultMaxHistory
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if activity == nil {
		activity = NewActivityTracker()
	}
	store := &Store{
		activity: activity,
		opts:     opts,
		now:      time.Now,
	}
	store.open = store.newSession()
	return store
}

// AddInteraction stamps identity and timestamp onto the partial
// interaction and appends it to the open session. It never fails: the
// open session is recreated if somehow absent, and the oldest
// interaction is evicted once the cap is reached.
func (s *Store) AddInteraction(partial models.Interaction) models.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open == nil {
		s.open = s.newSession()
	}

	partial.ID = uuid.New().String()
	partial.Timestamp = s.now()

	s.open.Interactions = append(s.open.Interactions, partial)
	if len(s.open.Interactions) > s.opts.MaxInteractions {
		// FIFO eviction, oldest first
		s.open.Interactions = s.open.Interactions[len(s.open.Interactions)-s.opts.MaxInteractions:]
	}

	if !s.open.HasProvider(partial.Provider) {
		s.open.Metadata.Providers = append(s.open.Metadata.Providers, string(partial.Provider))
	}

	if partial.FileContext != nil {
		s.activity.Record(partial.FileContext.Path, partial.Timestamp)
	} else {
		s.activity.Record("", partial.Timestamp)
	}

	return partial
}

// FinalizeWithCommit closes the open session against a commit. With no
// interactions to archive it is a no-op returning nil and the open
// session is left untouched. Otherwise the session is end-stamped,
// relevance-filtered, frozen into history, and a fresh session is
// opened immediately.
func (s *Store) FinalizeWithCommit(commit models.CommitInfo) *models.DevelopmentSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open == nil || len(s.open.Interactions) == 0 {
		return nil
	}

	now := s.now()
	finalized := s.open
	finalized.EndTime = &now
	finalized.Commit = &commit
	finalized.Interactions = s.filterRelevant(finalized.Interactions, commit, now)

	s.history = append(s.history, finalized)
	if len(s.history) > s.opts.MaxHistory {
		s.history = s.history[len(s.history)-s.opts.MaxHistory:]
	}

	s.open = s.newSession()

	logger.Infof("📦 Finalized session %s against commit %.8s (%d interactions retained)",
		finalized.ID, commit.Hash, len(finalized.Interactions))

	copied := copySession(finalized)
	return &copied
}

// CheckIdleTimeout abandons the open session when its newest
// interaction is older than the adaptive idle window. Abandoned
// interactions are dropped, not archived; stale low-signal work is
// noise in history. Returns true when a replacement happened.
func (s *Store) CheckIdleTimeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open == nil {
		s.open = s.newSession()
		return true
	}
	if len(s.open.Interactions) == 0 {
		return false
	}

	now := s.now()
	newest := s.open.Interactions[len(s.open.Interactions)-1].Timestamp
	if now.Sub(newest) <= s.effectiveTimeout(now) {
		return false
	}

	logger.Infof("💤 Abandoning idle session %s (%d interactions, last activity %s ago)",
		s.open.ID, len(s.open.Interactions), now.Sub(newest).Round(time.Second))
	s.open = s.newSession()
	return true
}

// CleanupHistory truncates history to the most recent maxEntries.
func (s *Store) CleanupHistory(maxEntries int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxEntries < 0 {
		maxEntries = 0
	}
	if len(s.history) > maxEntries {
		s.history = s.history[len(s.history)-maxEntries:]
	}
}

// Current returns a copy of the open session.
func (s *Store) Current() models.DevelopmentSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.open)
}

// History returns copies of finalized sessions, oldest first. A
// non-positive limit returns everything retained.
func (s *Store) History(limit int) []models.DevelopmentSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]models.DevelopmentSession, 0, len(entries))
	for _, entry := range entries {
		out = append(out, copySession(entry))
	}
	return out
}

// Recent returns the newest n interactions of the open session in
// insertion order, most recent last.
func (s *Store) Recent(n int) []models.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open == nil || n <= 0 {
		return nil
	}
	interactions := s.open.Interactions
	if len(interactions) > n {
		interactions = interactions[len(interactions)-n:]
	}
	out := make([]models.Interaction, len(interactions))
	copy(out, interactions)
	return out
}

// Activity exposes the tracker so the correlator and queue can share
// the working-hours estimate.
func (s *Store) Activity() *ActivityTracker {
	return s.activity
}

// effectiveTimeout widens the idle window during inferred working hours
// and narrows it outside them.
func (s *Store) effectiveTimeout(now time.Time) time.Duration {
	base := s.opts.IdleTimeout
	if _, _, ok := s.activity.WorkingWindow(); !ok {
		return base
	}
	if s.activity.IsWorkingHour(now) {
		return time.Duration(float64(base) * workingHoursTimeoutScale)
	}
	return time.Duration(float64(base) * offHoursTimeoutScale)
}

// filterRelevant applies the archival relevance rule: keep an
// interaction only if it happened within the timeout window before
// finalization AND (its file matches a changed file, or it is a chat
// interaction, which may be architecture discussion with no file).
// Chat bypasses the file match but never the time window.
func (s *Store) filterRelevant(interactions []models.Interaction, commit models.CommitInfo, now time.Time) []models.Interaction {
	window := s.effectiveTimeout(now)
	kept := make([]models.Interaction, 0, len(interactions))
	for _, interaction := range interactions {
		if now.Sub(interaction.Timestamp) > window {
			continue
		}
		if interaction.Type == models.InteractionChat {
			kept = append(kept, interaction)
			continue
		}
		if interaction.FileContext != nil && matchesChangedFile(interaction.FileContext.Path, commit.ChangedFiles) {
			kept = append(kept, interaction)
		}
	}
	return kept
}

// matchesChangedFile compares by path suffix/prefix in both directions,
// since the editor and the VCS may report different root-relative forms.
func matchesChangedFile(path string, changedFiles []string) bool {
	if path == "" {
		return false
	}
	for _, changed := range changedFiles {
		if changed == "" {
			continue
		}
		if path == changed ||
			strings.HasSuffix(path, "/"+changed) || strings.HasSuffix(changed, "/"+path) ||
			strings.HasSuffix(path, changed) || strings.HasSuffix(changed, path) {
			return true
		}
	}
	return false
}

func (s *Store) newSession() *models.DevelopmentSession {
	return &models.DevelopmentSession{
		ID:        uuid.New().String(),
		StartTime: s.now(),
		Metadata: models.SessionMetadata{
			Version:   s.opts.Version,
			Workspace: s.opts.Workspace,
		},
	}
}

func copySession(session *models.DevelopmentSession) models.DevelopmentSession {
	if session == nil {
		return models.DevelopmentSession{}
	}
	copied := *session
	copied.Interactions = make([]models.Interaction, len(session.Interactions))
	copy(copied.Interactions, session.Interactions)
	copied.Metadata.Providers = append([]string(nil), session.Metadata.Providers...)
	if session.Commit != nil {
		commit := *session.Commit
		commit.ChangedFiles = append([]string(nil), session.Commit.ChangedFiles...)
		copied.Commit = &commit
	}
	return copied
}
