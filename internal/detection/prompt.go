package detection

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codetrail/codetrail/internal/models"
)

// promptHints maps context keywords to the request they imply. Checked
// in order; the first few hits are combined into one description.
var promptHints = []struct {
	keywords    []string
	description string
}{
	{[]string{"error", "exception", "panic", "catch"}, "handle errors"},
	{[]string{"async", "await", "promise", "goroutine", "channel"}, "implement async functionality"},
	{[]string{"test", "assert", "expect", "mock"}, "write tests"},
	{[]string{"todo", "fixme"}, "address a TODO"},
	{[]string{"refactor", "cleanup", "simplify"}, "refactor existing code"},
	{[]string{"parse", "unmarshal", "decode", "serialize"}, "parse or serialize data"},
	{[]string{"http", "request", "endpoint", "route", "handler"}, "implement an API endpoint"},
	{[]string{"sql", "query", "database", "db."}, "work with the database"},
	{[]string{"validate", "sanitize", "check"}, "add validation"},
	{[]string{"config", "settings", "option"}, "wire configuration"},
	{[]string{"log", "logger", "debug"}, "add logging"},
}

// InferPrompt synthesizes a human-readable description of the request a
// change implies, from the lines immediately preceding it. Lossy and
// approximate by design; it labels the archived record, nothing more.
func InferPrompt(event models.ChangeEvent, interactionType models.InteractionType) string {
	context := strings.ToLower(strings.Join(event.PrecedingLines, "\n"))

	var actions []string
	for _, hint := range promptHints {
		for _, keyword := range hint.keywords {
			if strings.Contains(context, keyword) {
				actions = append(actions, hint.description)
				break
			}
		}
		if len(actions) == 3 {
			break
		}
	}

	subject := "code"
	if event.FilePath != "" {
		subject = filepath.Base(event.FilePath)
	}

	if len(actions) == 0 {
		switch interactionType {
		case models.InteractionComment:
			return fmt.Sprintf("Document %s", subject)
		case models.InteractionGeneration:
			return fmt.Sprintf("Generate code in %s", subject)
		default:
			return fmt.Sprintf("Assist with %s", subject)
		}
	}
	return fmt.Sprintf("In %s: %s", subject, strings.Join(actions, ", "))
}
