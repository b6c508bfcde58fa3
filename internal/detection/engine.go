package detection

import (
	"strings"
	"sync"
	"time"

	"github.com/codetrail/codetrail/internal/logger"
	"github.com/codetrail/codetrail/internal/models"
)

const (
	largeInsertionChars = 30
	pasteShapeChars     = 50
	smallEditChars      = 8
	lookBackWindow      = 60 * time.Second
	recentChangeCap     = 50
	maxConfidence       = 1.0
)

// signalWeights is one provider's additive scoring table. A zero weight
// disables the signal for that provider.
type signalWeights struct {
	LargeInsertion        float64
	MultiLine             float64
	CodePattern           float64
	PasteShape            float64
	CommentOpener         float64
	FunctionDecl          float64
	ExplanatoryComments   float64
	CompleteFunction      float64
	DocMarkers            float64
	ConsistentIndentation float64
	ErrorHandling         float64
	TypeAnnotations       float64
	Verbosity             float64
}

// providerProfile parameterizes the scorer for one provider. All
// providers share the same evaluation path; only the table differs.
type providerProfile struct {
	Provider      models.AIProvider
	Threshold     float64
	PresencePrior float64
	Weights       signalWeights
}

// Thresholds and weights are empirically tuned, deliberately
// approximate. Verbose chat-style output is easier to tell apart from
// typing than terse completions, so completion-style providers demand
// more convergent evidence.
func defaultProfiles() []providerProfile {
	base := signalWeights{
		LargeInsertion: 0.25,
		MultiLine:      0.15,
		CodePattern:    0.2,
		PasteShape:     0.2,
		CommentOpener:  0.1,
		FunctionDecl:   0.2,
	}

	claude := base
	claude.ExplanatoryComments = 0.2
	claude.DocMarkers = 0.15
	claude.CompleteFunction = 0.2
	claude.Verbosity = 0.15
	claude.ErrorHandling = 0.1

	copilot := base
	copilot.ConsistentIndentation = 0.1
	copilot.TypeAnnotations = 0.15
	copilot.CompleteFunction = 0.1

	cursor := base
	cursor.DocMarkers = 0.1
	cursor.ConsistentIndentation = 0.15
	cursor.TypeAnnotations = 0.1
	cursor.ExplanatoryComments = 0.1

	return []providerProfile{
		{Provider: models.ProviderClaude, Threshold: 0.45, PresencePrior: 0.2, Weights: claude},
		{Provider: models.ProviderCursor, Threshold: 0.5, PresencePrior: 0.25, Weights: cursor},
		{Provider: models.ProviderCopilot, Threshold: 0.55, PresencePrior: 0.3, Weights: copilot},
	}
}

func genericProfile() providerProfile {
	return providerProfile{
		Provider:  models.ProviderOther,
		Threshold: 0.5,
		Weights: signalWeights{
			LargeInsertion: 0.25,
			MultiLine:      0.15,
			CodePattern:    0.2,
			PasteShape:     0.25,
			FunctionDecl:   0.15,
		},
	}
}

type recentChange struct {
	documentID string
	length     int
	detected   bool
	at         time.Time
}

// Engine scores raw text-change events against provider heuristics. It
// runs synchronously inside the change-ingestion path and must stay
// cheap: pattern matching and arithmetic only, no I/O.
type Engine struct {
	profiles []providerProfile
	generic  providerProfile

	keystrokes *keystrokeTracker

	mu              sync.Mutex
	recent          []recentChange
	activeProviders map[models.AIProvider]bool

	thresholdScale float64
	log            func(format string, args ...interface{})
}

// NewEngine builds an engine with the default profile tables.
// thresholdScale comes from the configured sensitivity; 1.0 is neutral.
func NewEngine(thresholdScale float64) *Engine {
	if thresholdScale <= 0 {
		thresholdScale = 1.0
	}
	return &Engine{
		profiles:        defaultProfiles(),
		generic:         genericProfile(),
		keystrokes:      newKeystrokeTracker(),
		activeProviders: make(map[models.AIProvider]bool),
		thresholdScale:  thresholdScale,
		log:             logger.Debugf,
	}
}

// SetProviderActive records whether a provider integration is known to
// be installed. Presence acts as a strong prior; absence only removes
// it, content heuristics still apply.
func (e *Engine) SetProviderActive(provider models.AIProvider, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeProviders[provider] = active
}

// Evaluate scores one change event. It returns one candidate per
// provider profile, each with its own confidence and detected flag;
// if no provider fires, a generic fallback candidate is evaluated.
// Ambiguity is preserved: several providers may claim the same event.
func (e *Engine) Evaluate(event models.ChangeEvent) []models.DetectionCandidate {
	now := event.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	inserted := event.InsertedText
	lineCount := strings.Count(inserted, "\n") + 1

	// Small single-line edits are keystrokes: feed the typing-speed
	// estimate and score near zero everywhere.
	if len(inserted) <= smallEditChars && lineCount == 1 {
		e.keystrokes.RecordKeystroke(event.DocumentID, now)
	}
	typingSpeed := e.keystrokes.TypingSpeed(event.DocumentID, now)

	signals := e.collectSignals(event, typingSpeed)

	candidates := make([]models.DetectionCandidate, 0, len(e.profiles)+1)
	anyDetected := false
	for _, profile := range e.profiles {
		candidate := e.score(profile, signals)
		candidate.Type = classifyType(event, signals, e.hadRecentDetection(event.DocumentID, now))
		if candidate.Detected {
			anyDetected = true
		}
		candidates = append(candidates, candidate)
	}

	if !anyDetected {
		candidate := e.score(e.generic, signals)
		candidate.Type = classifyType(event, signals, e.hadRecentDetection(event.DocumentID, now))
		if candidate.Detected {
			anyDetected = true
		}
		candidates = append(candidates, candidate)
	}

	e.remember(recentChange{
		documentID: event.DocumentID,
		length:     len(inserted),
		detected:   anyDetected,
		at:         now,
	})

	if anyDetected {
		e.log("🔍 change on %s scored as AI-assisted (%d candidates)", event.DocumentID, len(candidates))
	}
	return candidates
}

// observedSignals is the per-event result of the shared checks; the
// per-provider pass just weights them.
type observedSignals struct {
	largeInsertion        bool
	multiLine             bool
	codePattern           bool
	pasteShape            bool
	commentOpener         bool
	functionDecl          bool
	explanatoryComments   bool
	completeFunction      bool
	docMarkers            bool
	consistentIndentation bool
	errorHandling         bool
	typeAnnotations       bool
	verbosity             float64
}

func (e *Engine) collectSignals(event models.ChangeEvent, typingSpeed float64) observedSignals {
	inserted := event.InsertedText
	lineCount := strings.Count(inserted, "\n") + 1
	patterns := patternsFor(event.Language)

	signals := observedSignals{
		largeInsertion: len(inserted) > largeInsertionChars && event.ReplacedLength == 0,
		multiLine:      lineCount > 2,
		pasteShape:     typingSpeed == 0 && len(inserted) > pasteShapeChars,
	}

	if patterns != nil {
		signals.codePattern = patterns.code.MatchString(inserted)
		signals.commentOpener = patterns.comment.MatchString(inserted)
		signals.functionDecl = patterns.functionDecl.MatchString(inserted)
		signals.errorHandling = patterns.errorHandling.MatchString(inserted)
		signals.typeAnnotations = patterns.typeAnnot.MatchString(inserted)
	} else {
		signals.codePattern = looksLikeCode(inserted)
	}
	signals.explanatoryComments = hasExplanatoryComments(inserted)
	signals.completeFunction = looksLikeCompleteFunction(inserted, patterns)
	signals.docMarkers = hasDocumentationMarkers(inserted)
	signals.consistentIndentation = signals.multiLine && hasConsistentIndentation(inserted)
	signals.verbosity = verbosityScore(inserted, patterns)
	return signals
}

func (e *Engine) score(profile providerProfile, signals observedSignals) models.DetectionCandidate {
	confidence := 0.0
	var matched []string

	add := func(hit bool, weight float64, name string) {
		if hit && weight > 0 {
			confidence += weight
			matched = append(matched, name)
		}
	}

	w := profile.Weights
	add(signals.largeInsertion, w.LargeInsertion, "large_insertion")
	add(signals.multiLine, w.MultiLine, "multi_line")
	add(signals.codePattern, w.CodePattern, "code_pattern")
	add(signals.pasteShape, w.PasteShape, "paste_shape")
	add(signals.commentOpener, w.CommentOpener, "comment_opener")
	add(signals.functionDecl, w.FunctionDecl, "function_decl")
	add(signals.explanatoryComments, w.ExplanatoryComments, "explanatory_comments")
	add(signals.completeFunction, w.CompleteFunction, "complete_function")
	add(signals.docMarkers, w.DocMarkers, "doc_markers")
	add(signals.consistentIndentation, w.ConsistentIndentation, "consistent_indentation")
	add(signals.errorHandling, w.ErrorHandling, "error_handling")
	add(signals.typeAnnotations, w.TypeAnnotations, "type_annotations")
	if w.Verbosity > 0 && signals.verbosity > 0 {
		confidence += w.Verbosity * signals.verbosity
		matched = append(matched, "verbosity")
	}

	e.mu.Lock()
	active := e.activeProviders[profile.Provider]
	e.mu.Unlock()
	if active && profile.PresencePrior > 0 {
		confidence += profile.PresencePrior
		matched = append(matched, "provider_present")
	}

	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	threshold := profile.Threshold * e.thresholdScale
	return models.DetectionCandidate{
		Detected:   confidence >= threshold,
		Confidence: confidence,
		Provider:   profile.Provider,
		Signals:    matched,
	}
}

// classifyType picks the interaction type for a change. Chat is never
// inferred here; it only comes from manual capture.
func classifyType(event models.ChangeEvent, signals observedSignals, continuation bool) models.InteractionType {
	inserted := event.InsertedText
	lines := strings.Split(inserted, "\n")
	patterns := patternsFor(event.Language)

	if patterns != nil && signals.commentOpener {
		commentLines := 0
		for _, line := range lines {
			if strings.TrimSpace(line) == "" || patterns.comment.MatchString(line) {
				commentLines++
			}
		}
		if commentLines == len(lines) {
			return models.InteractionComment
		}
	}
	if signals.multiLine && signals.completeFunction {
		return models.InteractionGeneration
	}
	if continuation && !signals.multiLine {
		return models.InteractionCompletion
	}
	if signals.multiLine {
		return models.InteractionInline
	}
	return models.InteractionCompletion
}

// remember appends to the look-back cache, sweeping entries older than
// the window and bounding the cache size.
func (e *Engine) remember(change recentChange) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := change.at.Add(-lookBackWindow)
	kept := e.recent[:0]
	for _, existing := range e.recent {
		if existing.at.After(cutoff) {
			kept = append(kept, existing)
		}
	}
	e.recent = kept
	e.recent = append(e.recent, change)
	if len(e.recent) > recentChangeCap {
		e.recent = e.recent[len(e.recent)-recentChangeCap:]
	}
}

func (e *Engine) hadRecentDetection(documentID string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := now.Add(-lookBackWindow)
	for _, change := range e.recent {
		if change.documentID == documentID && change.detected && change.at.After(cutoff) {
			return true
		}
	}
	return false
}
