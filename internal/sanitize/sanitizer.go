// Package sanitize scrubs secrets and personal paths from text before
// it leaves the process for remote storage. Stateless regex filtering;
// rules can be extended from a YAML file, with compiled-in defaults.
package sanitize

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/codetrail/codetrail/internal/models"
)

// Rule is one redaction pattern. Replacement defaults to "[REDACTED]".
type Rule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description"`
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

// Sanitizer applies the compiled rule set.
type Sanitizer struct {
	rules []compiledRule
}

// New compiles the default rules plus any extras loaded from path. An
// empty or missing path means defaults only.
func New(path string) (*Sanitizer, error) {
	rules := defaultRules()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read sanitizer rules %s: %w", path, err)
		}
		if err == nil {
			var file rulesFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("failed to parse sanitizer rules %s: %w", path, err)
			}
			rules = append(rules, file.Rules...)
		}
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid sanitizer pattern %q: %w", rule.Pattern, err)
		}
		replacement := rule.Replacement
		if replacement == "" {
			replacement = "[REDACTED]"
		}
		compiled = append(compiled, compiledRule{re: re, replacement: replacement})
	}
	return &Sanitizer{rules: compiled}, nil
}

// Sanitize scrubs a single string. workspaceRoot, when non-empty, is
// also rewritten so archived records don't leak local directory layout.
func (s *Sanitizer) Sanitize(text, workspaceRoot string) string {
	if text == "" {
		return text
	}
	for _, rule := range s.rules {
		text = rule.re.ReplaceAllString(text, rule.replacement)
	}
	if workspaceRoot != "" {
		text = strings.ReplaceAll(text, workspaceRoot, "[WORKSPACE]")
	}
	return text
}

// SanitizeRecord scrubs every outbound text field of an archive record
// in place.
func (s *Sanitizer) SanitizeRecord(record *models.ArchiveRecord, workspaceRoot string) {
	if record == nil {
		return
	}
	record.Prompt = s.Sanitize(record.Prompt, workspaceRoot)
	record.Response = s.Sanitize(record.Response, workspaceRoot)
	if record.Git != nil {
		record.Git.Message = s.Sanitize(record.Git.Message, workspaceRoot)
	}
	record.Metadata.Workspace = s.Sanitize(record.Metadata.Workspace, workspaceRoot)
}

func defaultRules() []Rule {
	return []Rule{
		{Pattern: `(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,}['"]?`, Replacement: "$1=[REDACTED]", Description: "API key assignments"},
		{Pattern: `(?i)(secret|password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{6,}['"]?`, Replacement: "$1=[REDACTED]", Description: "Password assignments"},
		{Pattern: `(?i)(token|auth[_-]?token|access[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9_\-.]{16,}['"]?`, Replacement: "$1=[REDACTED]", Description: "Token assignments"},
		{Pattern: `(?i)bearer\s+[A-Za-z0-9_\-.~+/]{16,}=*`, Replacement: "Bearer [REDACTED]", Description: "Bearer headers"},
		{Pattern: `gh[pousr]_[A-Za-z0-9]{36,}`, Description: "GitHub tokens"},
		{Pattern: `sk-[A-Za-z0-9\-_]{20,}`, Description: "API secret keys"},
		{Pattern: `AKIA[0-9A-Z]{16}`, Description: "AWS access key ids"},
		{Pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`, Replacement: "[REDACTED PRIVATE KEY]", Description: "PEM private key blocks"},
		{Pattern: `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`, Replacement: "[EMAIL]", Description: "Email addresses"},
		{Pattern: `(https?://)[^\s:@/]+:[^\s:@/]+@`, Replacement: "$1[REDACTED]@", Description: "URLs with embedded credentials"},
		{Pattern: `/(?:home|Users)/[^/\s]+`, Replacement: "~", Description: "Home directory paths"},
	}
}
