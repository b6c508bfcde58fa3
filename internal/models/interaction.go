package models

import (
	"time"
)

// AIProvider identifies the assistant an interaction is attributed to.
// The attribution is a heuristic best guess, never verified ground truth.
type AIProvider string

const (
	ProviderCopilot AIProvider = "copilot"
	ProviderClaude  AIProvider = "claude"
	ProviderCursor  AIProvider = "cursor"
	ProviderOther   AIProvider = "other"
)

// InteractionType classifies how the assistance was delivered.
type InteractionType string

const (
	InteractionChat       InteractionType = "chat"
	InteractionInline     InteractionType = "inline"
	InteractionComment    InteractionType = "comment"
	InteractionCompletion InteractionType = "completion"
	InteractionGeneration InteractionType = "generation"
)

// FileContext ties an interaction to the document it touched.
type FileContext struct {
	Path           string `json:"path"`
	Language       string `json:"language,omitempty"`
	SelectionStart int    `json:"selection_start,omitempty"`
	SelectionEnd   int    `json:"selection_end,omitempty"`
	Snippet        string `json:"snippet,omitempty"`
}

// Interaction is one observed (or manually recorded) unit of AI assistance.
// Immutable once created; the ID and timestamp are stamped at ingestion.
type Interaction struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Prompt      string          `json:"prompt"`
	Response    string          `json:"response,omitempty"`
	Provider    AIProvider      `json:"provider"`
	Type        InteractionType `json:"type"`
	Confidence  float64         `json:"confidence"`
	FileContext *FileContext    `json:"file_context,omitempty"`
}

// ChangeEvent is the plain data descriptor an editor reports for a text
// change. The pipeline has no dependency on any editor's event types.
type ChangeEvent struct {
	DocumentID     string    `json:"document_id"`
	FilePath       string    `json:"file_path,omitempty"`
	Language       string    `json:"language,omitempty"`
	InsertedText   string    `json:"inserted_text"`
	ReplacedLength int       `json:"replaced_length"`
	RangeStart     int       `json:"range_start,omitempty"`
	PrecedingLines []string  `json:"preceding_lines,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

// DetectionCandidate is one provider heuristic's verdict on a change event.
// Several providers may claim the same event; ambiguity is preserved.
type DetectionCandidate struct {
	Detected   bool            `json:"detected"`
	Confidence float64         `json:"confidence"`
	Provider   AIProvider      `json:"provider"`
	Type       InteractionType `json:"type"`
	Signals    []string        `json:"signals,omitempty"`
}
