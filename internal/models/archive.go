package models

import (
	"time"
)

// GitInfo is the flattened commit block embedded in an archive record.
type GitInfo struct {
	Hash         string   `json:"hash"`
	Branch       string   `json:"branch"`
	Author       string   `json:"author"`
	Message      string   `json:"message"`
	Repository   string   `json:"repository"`
	ChangedFiles []string `json:"changed_files,omitempty"`
}

// ArchiveMetadata is the flattened metadata block of an archive record.
type ArchiveMetadata struct {
	Version      string   `json:"version,omitempty"`
	Workspace    string   `json:"workspace,omitempty"`
	Providers    []string `json:"providers,omitempty"`
	Interactions int      `json:"interactions"`
}

// ArchiveRecord is the flat prompt/response/git/metadata shape handed to
// remote storage. Built from a finalized, sanitized session; no other
// schema is owned by this side of the boundary.
type ArchiveRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	Prompt    string          `json:"prompt"`
	Response  string          `json:"response,omitempty"`
	Git       *GitInfo        `json:"git,omitempty"`
	Metadata  ArchiveMetadata `json:"metadata"`
}

// NewArchiveRecord flattens a finalized session into the archive shape.
// Prompts and responses from the retained interactions are joined in
// insertion order, separated by blank lines.
func NewArchiveRecord(session *DevelopmentSession) *ArchiveRecord {
	record := &ArchiveRecord{
		Timestamp: session.StartTime,
		SessionID: session.ID,
		Metadata: ArchiveMetadata{
			Version:      session.Metadata.Version,
			Workspace:    session.Metadata.Workspace,
			Providers:    session.Metadata.Providers,
			Interactions: len(session.Interactions),
		},
	}
	if session.EndTime != nil {
		record.Timestamp = *session.EndTime
	}
	if session.Commit != nil {
		record.Git = &GitInfo{
			Hash:         session.Commit.Hash,
			Branch:       session.Commit.Branch,
			Author:       session.Commit.Author,
			Message:      session.Commit.Message,
			Repository:   session.Commit.RepositoryID,
			ChangedFiles: session.Commit.ChangedFiles,
		}
	}
	record.Prompt = joinNonEmpty(session.Interactions, func(i Interaction) string { return i.Prompt })
	record.Response = joinNonEmpty(session.Interactions, func(i Interaction) string { return i.Response })
	return record
}

func joinNonEmpty(interactions []Interaction, pick func(Interaction) string) string {
	var out string
	for _, interaction := range interactions {
		text := pick(interaction)
		if text == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += text
	}
	return out
}
