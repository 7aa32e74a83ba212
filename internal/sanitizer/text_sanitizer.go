// Package sanitizer strips markup from user-supplied text such as recipe
// titles, steps and profile bios.
package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer removes every HTML element from its input. Script and style
// bodies are dropped; the text of other elements is kept.
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer creates a TextSanitizer with bluemonday's strict policy.
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean returns s as plain text, trimmed. Entities escaped by the policy are
// decoded again so "Sal & pimienta" survives unchanged.
func (s *TextSanitizer) Clean(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// CleanAll cleans each element of texts in place and returns it.
func (s *TextSanitizer) CleanAll(texts []string) []string {
	for i, t := range texts {
		texts[i] = s.Clean(t)
	}
	return texts
}

// CleanPtr cleans *text when text is non-nil.
func (s *TextSanitizer) CleanPtr(text *string) *string {
	if text == nil {
		return nil
	}
	cleaned := s.Clean(*text)
	return &cleaned
}
