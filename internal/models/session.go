package models

import (
	"time"
)

// CommitInfo describes the commit a session was finalized against.
type CommitInfo struct {
	Hash         string    `json:"hash"`
	Branch       string    `json:"branch"`
	Author       string    `json:"author"`
	Message      string    `json:"message"`
	RepositoryID string    `json:"repository_id"` // e.g. "owner/repo"
	ChangedFiles []string  `json:"changed_files"`
	Timestamp    time.Time `json:"timestamp"`
}

// SessionMetadata carries environment info accumulated over a session's
// lifetime. The provider set only ever grows within a session.
type SessionMetadata struct {
	Version   string   `json:"version,omitempty"`
	Workspace string   `json:"workspace,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// DevelopmentSession is a bounded window of developer activity, opened
// implicitly and closed by a commit finalize or idle timeout. While open
// it is mutable and owned by the session store; once finalized it is an
// immutable history entry.
type DevelopmentSession struct {
	ID           string          `json:"id"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	Interactions []Interaction   `json:"interactions"`
	Commit       *CommitInfo     `json:"commit,omitempty"`
	Metadata     SessionMetadata `json:"metadata"`
}

// HasProvider reports whether the provider was already observed in this session.
func (s *DevelopmentSession) HasProvider(provider AIProvider) bool {
	for _, p := range s.Metadata.Providers {
		if p == string(provider) {
			return true
		}
	}
	return false
}

// DistinctFiles returns the number of distinct file paths touched by the
// session's interactions. Interactions without file context don't count.
func (s *DevelopmentSession) DistinctFiles() int {
	files := make(map[string]struct{})
	for _, interaction := range s.Interactions {
		if interaction.FileContext != nil && interaction.FileContext.Path != "" {
			files[interaction.FileContext.Path] = struct{}{}
		}
	}
	return len(files)
}

// QualityReport is the analyzer's read-only view of a session.
type QualityReport struct {
	Productivity    float64  `json:"productivity"`
	Focus           float64  `json:"focus"`
	AIDependency    string   `json:"ai_dependency"` // low, medium, high
	Overall         string   `json:"overall"`       // high, medium, low
	Recommendations []string `json:"recommendations,omitempty"`
	Interactions    int      `json:"interactions"`
	DistinctFiles   int      `json:"distinct_files"`
}
