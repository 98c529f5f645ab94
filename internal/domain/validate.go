package domain

import (
	"regexp"
	"strings"
)

// Request limits enforced at the tool boundary.
const (
	MaxPromptLength   = 10000
	MaxBatchCount     = 10
	MaxCompareModels  = 6
	MaxConcurrentJobs = 8
)

// Model IDs are namespaced slugs: owner/name with optional variant segments.
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*/[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)*$`)

var slugReplacer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ValidateModelID checks the owner/name[/variant...] shape.
func ValidateModelID(modelID string) error {
	if !modelIDPattern.MatchString(modelID) {
		return Errf(CodeInvalidModelID, "invalid model ID format: %q", modelID)
	}
	return nil
}

// ValidatePrompt enforces the prompt length bound.
func ValidatePrompt(prompt string) error {
	if len(prompt) > MaxPromptLength {
		return Errf(CodePromptTooLong, "prompt exceeds max length (%d)", MaxPromptLength)
	}
	return nil
}

// NormalizeCursor merges the deprecated page alias into cursor. Conflicting
// values are rejected; equal or single values pass through.
func NormalizeCursor(cursor, page string) (string, error) {
	if cursor != "" && page != "" && cursor != page {
		return "", NewToolError(CodeAmbiguousCursor,
			"provide only one of cursor or page, or set both to the same value")
	}
	if cursor != "" {
		return cursor, nil
	}
	return page, nil
}

// SlugifyModelID turns a model ID into a filesystem-safe stem.
func SlugifyModelID(modelID string) string {
	slug := slugReplacer.ReplaceAllString(modelID, "-")
	return strings.ToLower(strings.Trim(slug, "-"))
}
