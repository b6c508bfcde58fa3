package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrail/codetrail/internal/models"
)

const generatedGoFunction = `// processRecords validates and transforms the incoming batch.
// This handles errors for each record individually so one bad
// record does not abort the batch.
func processRecords(records []Record) ([]Result, error) {
	results := make([]Result, 0, len(records))
	for _, record := range records {
		transformed, err := transformRecord(record)
		if err != nil {
			return nil, fmt.Errorf("failed to transform record %s: %w", record.ID, err)
		}
		results = append(results, transformed)
	}
	return results, nil
}`

func findCandidate(t *testing.T, candidates []models.DetectionCandidate, provider models.AIProvider) models.DetectionCandidate {
	t.Helper()
	for _, candidate := range candidates {
		if candidate.Provider == provider {
			return candidate
		}
	}
	t.Fatalf("no candidate for provider %s", provider)
	return models.DetectionCandidate{}
}

func TestEvaluateDetectsGeneratedFunction(t *testing.T) {
	engine := NewEngine(1.0)

	candidates := engine.Evaluate(models.ChangeEvent{
		DocumentID:   "doc-1",
		FilePath:     "internal/batch/process.go",
		Language:     "go",
		InsertedText: generatedGoFunction,
		Timestamp:    time.Now(),
	})

	// All profiles fire, so the generic fallback is not evaluated.
	require.Len(t, candidates, 3)
	for _, candidate := range candidates {
		assert.True(t, candidate.Detected, "provider %s should detect", candidate.Provider)
		assert.NotEmpty(t, candidate.Signals)
	}

	claude := findCandidate(t, candidates, models.ProviderClaude)
	assert.Equal(t, models.InteractionGeneration, claude.Type)
	assert.GreaterOrEqual(t, claude.Confidence, 0.45)
}

func TestEvaluateIgnoresSmallEdit(t *testing.T) {
	engine := NewEngine(1.0)

	candidates := engine.Evaluate(models.ChangeEvent{
		DocumentID:   "doc-1",
		FilePath:     "main.go",
		Language:     "go",
		InsertedText: "ab",
		Timestamp:    time.Now(),
	})

	// Nothing fires, so the generic fallback is included.
	require.Len(t, candidates, 4)
	for _, candidate := range candidates {
		assert.False(t, candidate.Detected, "provider %s should not detect a keystroke", candidate.Provider)
		assert.Less(t, candidate.Confidence, 0.3)
	}
}

func TestRecentTypingSuppressesPasteShape(t *testing.T) {
	now := time.Now()
	largeEvent := func() models.ChangeEvent {
		return models.ChangeEvent{
			DocumentID:   "doc-1",
			Language:     "go",
			InsertedText: "var alpha = 1\nvar beta = 2\nvar gamma = 3\nvar delta = 4\n",
			Timestamp:    now,
		}
	}

	cold := NewEngine(1.0)
	coldClaude := findCandidate(t, cold.Evaluate(largeEvent()), models.ProviderClaude)

	warm := NewEngine(1.0)
	for i := 0; i < 10; i++ {
		warm.Evaluate(models.ChangeEvent{
			DocumentID:   "doc-1",
			Language:     "go",
			InsertedText: "x",
			Timestamp:    now.Add(time.Duration(i) * 200 * time.Millisecond),
		})
	}
	warmClaude := findCandidate(t, warm.Evaluate(largeEvent()), models.ProviderClaude)

	assert.Greater(t, coldClaude.Confidence, warmClaude.Confidence,
		"an insertion during active typing should score lower than a cold paste")
}

func TestVerboseOutputFavorsChatStyleProviders(t *testing.T) {
	engine := NewEngine(1.0)

	candidates := engine.Evaluate(models.ChangeEvent{
		DocumentID:   "doc-1",
		Language:     "go",
		InsertedText: generatedGoFunction,
		Timestamp:    time.Now(),
	})

	claude := findCandidate(t, candidates, models.ProviderClaude)
	copilot := findCandidate(t, candidates, models.ProviderCopilot)
	assert.GreaterOrEqual(t, claude.Confidence, copilot.Confidence,
		"explanatory comments and doc markers should favor the chat-style profile")
}

func TestPresencePriorRaisesConfidence(t *testing.T) {
	event := models.ChangeEvent{
		DocumentID:   "doc-1",
		Language:     "go",
		InsertedText: "var alpha = 1\nvar beta = 2\nvar gamma = 3\n",
		Timestamp:    time.Now(),
	}

	inactive := NewEngine(1.0)
	without := findCandidate(t, inactive.Evaluate(event), models.ProviderClaude)

	active := NewEngine(1.0)
	active.SetProviderActive(models.ProviderClaude, true)
	with := findCandidate(t, active.Evaluate(event), models.ProviderClaude)

	assert.Greater(t, with.Confidence, without.Confidence)
	assert.Contains(t, with.Signals, "provider_present")
}

func TestSensitivityScalesThresholds(t *testing.T) {
	// Moderate evidence: large multi-line code insertion, no comments.
	event := models.ChangeEvent{
		DocumentID:   "doc-1",
		Language:     "go",
		InsertedText: "var alpha = 1\nvar beta = 2\nvar gamma = 3\n",
		Timestamp:    time.Now(),
	}

	medium := findCandidate(t, NewEngine(1.0).Evaluate(event), models.ProviderCopilot)
	low := findCandidate(t, NewEngine(1.25).Evaluate(event), models.ProviderCopilot)

	assert.True(t, medium.Detected)
	assert.False(t, low.Detected, "low sensitivity should demand more evidence")
}

func TestClassifyCommentOnlyInsertion(t *testing.T) {
	engine := NewEngine(1.0)

	candidates := engine.Evaluate(models.ChangeEvent{
		DocumentID:   "doc-1",
		Language:     "go",
		InsertedText: "// Reconnect with exponential backoff.\n// The first retry waits one second.",
		Timestamp:    time.Now(),
	})

	require.NotEmpty(t, candidates)
	assert.Equal(t, models.InteractionComment, candidates[0].Type)
}

func TestTypingSpeedWindow(t *testing.T) {
	tracker := newKeystrokeTracker()
	now := time.Now()

	for i := 0; i < 5; i++ {
		tracker.RecordKeystroke("doc-1", now.Add(time.Duration(i)*time.Second))
	}

	assert.Greater(t, tracker.TypingSpeed("doc-1", now.Add(5*time.Second)), 0.0)
	assert.Zero(t, tracker.TypingSpeed("doc-1", now.Add(30*time.Second)),
		"keystrokes outside the window should not count")
	assert.Zero(t, tracker.TypingSpeed("doc-2", now), "unknown documents have no speed")

	tracker.Forget("doc-1")
	assert.Zero(t, tracker.TypingSpeed("doc-1", now.Add(5*time.Second)))
}
