package detection

import (
	"regexp"
	"strings"
)

// languagePatterns holds the per-language regexes used by the signal
// checks. Unknown languages fall back to the generic entry, which leans
// on punctuation density instead of syntax.
type languagePatterns struct {
	code          *regexp.Regexp // "looks like code" shape
	comment       *regexp.Regexp // comment opener
	functionDecl  *regexp.Regexp // function/method declaration
	errorHandling *regexp.Regexp // error-handling idiom
	typeAnnot     *regexp.Regexp // type annotation / signature typing
}

var patternsByLanguage = map[string]*languagePatterns{
	"go": {
		code:          regexp.MustCompile(`(?m)^\s*(func|type|var|const|package|import)\b`),
		comment:       regexp.MustCompile(`(?m)^\s*//`),
		functionDecl:  regexp.MustCompile(`(?m)^\s*func\s+(\(\w+\s+\*?\w+\)\s+)?\w+\s*\(`),
		errorHandling: regexp.MustCompile(`if\s+err\s*!=\s*nil|errors\.(New|Is|As)|fmt\.Errorf`),
		typeAnnot:     regexp.MustCompile(`\)\s*\(?(error|string|int\d*|bool|\*\w+|\[\]\w+)`),
	},
	"typescript": {
		code:          regexp.MustCompile(`(?m)^\s*(export|import|const|let|function|class|interface|async)\b`),
		comment:       regexp.MustCompile(`(?m)^\s*(//|/\*)`),
		functionDecl:  regexp.MustCompile(`(function\s+\w+\s*\(|\w+\s*=\s*(async\s*)?\([^)]*\)\s*(:\s*\w+)?\s*=>|(public|private|protected)?\s*(async\s+)?\w+\s*\([^)]*\)\s*:\s*\w+)`),
		errorHandling: regexp.MustCompile(`try\s*{|catch\s*\(|\.catch\(|throw\s+new\s+\w*Error`),
		typeAnnot:     regexp.MustCompile(`:\s*(string|number|boolean|void|Promise<|\w+\[\]|Record<)`),
	},
	"javascript": {
		code:          regexp.MustCompile(`(?m)^\s*(export|import|const|let|var|function|class|async)\b`),
		comment:       regexp.MustCompile(`(?m)^\s*(//|/\*)`),
		functionDecl:  regexp.MustCompile(`(function\s+\w+\s*\(|\w+\s*=\s*(async\s*)?\([^)]*\)\s*=>)`),
		errorHandling: regexp.MustCompile(`try\s*{|catch\s*\(|\.catch\(|throw\s+new\s+\w*Error`),
		typeAnnot:     regexp.MustCompile(`@param\s*{|@returns\s*{`),
	},
	"python": {
		code:          regexp.MustCompile(`(?m)^\s*(def|class|import|from|async\s+def|return|if\s+__name__)\b`),
		comment:       regexp.MustCompile(`(?m)^\s*(#|"""|''')`),
		functionDecl:  regexp.MustCompile(`(?m)^\s*(async\s+)?def\s+\w+\s*\(`),
		errorHandling: regexp.MustCompile(`try\s*:|except\s+\w*|raise\s+\w+`),
		typeAnnot:     regexp.MustCompile(`->\s*\w+|:\s*(str|int|float|bool|list|dict|Optional\[|List\[)`),
	},
	"rust": {
		code:          regexp.MustCompile(`(?m)^\s*(fn|let|pub|use|impl|struct|enum|mod)\b`),
		comment:       regexp.MustCompile(`(?m)^\s*(//|///)`),
		functionDecl:  regexp.MustCompile(`(?m)^\s*(pub\s+)?(async\s+)?fn\s+\w+`),
		errorHandling: regexp.MustCompile(`Result<|\.unwrap\(\)|\.expect\(|match\s+\w+\s*{|\?;`),
		typeAnnot:     regexp.MustCompile(`->\s*(\w+|Result<|Option<)|:\s*&?\w+(<|\b)`),
	},
	"java": {
		code:          regexp.MustCompile(`(?m)^\s*(public|private|protected|class|interface|import|package)\b`),
		comment:       regexp.MustCompile(`(?m)^\s*(//|/\*|\*)`),
		functionDecl:  regexp.MustCompile(`(public|private|protected)\s+(static\s+)?[\w<>\[\]]+\s+\w+\s*\(`),
		errorHandling: regexp.MustCompile(`try\s*{|catch\s*\(|throws\s+\w+|throw\s+new`),
		typeAnnot:     regexp.MustCompile(`\b(String|int|long|boolean|List<|Map<|Optional<)\b`),
	},
}

// aliases map editor language ids onto the canonical table keys.
var languageAliases = map[string]string{
	"typescriptreact": "typescript",
	"javascriptreact": "javascript",
	"tsx":             "typescript",
	"jsx":             "javascript",
	"golang":          "go",
	"py":              "python",
	"rs":              "rust",
}

func patternsFor(language string) *languagePatterns {
	lang := strings.ToLower(language)
	if canonical, ok := languageAliases[lang]; ok {
		lang = canonical
	}
	return patternsByLanguage[lang]
}

var genericCodePunctuation = regexp.MustCompile(`[{}();=<>\[\]]`)

// looksLikeCode is the fallback code-likeness check for unknown
// languages: enough structural punctuation relative to length.
func looksLikeCode(text string) bool {
	if len(text) < 10 {
		return false
	}
	matches := genericCodePunctuation.FindAllString(text, -1)
	return float64(len(matches))/float64(len(text)) > 0.02
}

var docMarkerPattern = regexp.MustCompile(`(?m)^\s*(///|/\*\*|"""|'''|# \w|//\s+\w+\s+\w+)`)

// hasDocumentationMarkers reports doc-comment style markers anywhere in
// the insertion, a shape typical of explanatory generated code.
func hasDocumentationMarkers(text string) bool {
	return docMarkerPattern.MatchString(text)
}

var explanatoryCommentPattern = regexp.MustCompile(`(?i)(//|#)\s*(this|we|note|first|then|finally|handle|ensure|calculate|initialize|iterate|validate)`)

// hasExplanatoryComments matches the "thoughtful narration" comment
// style that chat assistants tend to produce.
func hasExplanatoryComments(text string) bool {
	return explanatoryCommentPattern.MatchString(text)
}

// hasConsistentIndentation checks whether every indented line uses the
// same leading unit (all tabs or a constant space multiple).
func hasConsistentIndentation(text string) bool {
	lines := strings.Split(text, "\n")
	indented := 0
	spaceUnit := 0
	tabs := 0
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || len(trimmed) == len(line) {
			continue
		}
		indented++
		prefix := line[:len(line)-len(trimmed)]
		if strings.HasPrefix(prefix, "\t") {
			tabs++
			continue
		}
		width := len(prefix)
		if spaceUnit == 0 {
			switch {
			case width%4 == 0:
				spaceUnit = 4
			case width%2 == 0:
				spaceUnit = 2
			default:
				return false
			}
		} else if width%spaceUnit != 0 {
			return false
		}
	}
	if indented < 2 {
		return false
	}
	return tabs == 0 || tabs == indented
}

// looksLikeCompleteFunction is a cheap structural check: a declaration
// plus balanced braces (or a python def with an indented body).
func looksLikeCompleteFunction(text string, patterns *languagePatterns) bool {
	if patterns == nil || !patterns.functionDecl.MatchString(text) {
		return false
	}
	opens := strings.Count(text, "{")
	closes := strings.Count(text, "}")
	if opens > 0 {
		return opens == closes
	}
	// brace-less languages: declaration followed by at least one indented line
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if patterns.functionDecl.MatchString(line) && i+1 < len(lines) {
			next := lines[i+1]
			if strings.HasPrefix(next, "    ") || strings.HasPrefix(next, "\t") {
				return true
			}
		}
	}
	return false
}

var longIdentifierPattern = regexp.MustCompile(`\b[a-z]+(?:[A-Z][a-z0-9]+){2,}\b|\b[a-z]+(?:_[a-z0-9]+){2,}\b`)

// verbosityScore estimates how "explanatory" an insertion is: comment
// ratio, long descriptive identifiers and blank-line spacing each
// contribute a third.
func verbosityScore(text string, patterns *languagePatterns) float64 {
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return 0
	}
	var commentLines, blankLines int
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankLines++
			continue
		}
		if patterns != nil && patterns.comment.MatchString(line) {
			commentLines++
		}
	}
	score := 0.0
	if ratio := float64(commentLines) / float64(len(lines)); ratio > 0.15 {
		score += 1.0 / 3
	}
	if len(longIdentifierPattern.FindAllString(text, -1)) >= 3 {
		score += 1.0 / 3
	}
	if blankLines > 0 && blankLines < len(lines)/2 {
		score += 1.0 / 3
	}
	return score
}
