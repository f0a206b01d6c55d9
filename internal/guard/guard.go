// Package guard holds the pure validation layers applied to every inbound
// chat request: origin checks, input checks and sanitization. Nothing here
// touches shared state.
package guard

import (
	"fmt"
	"regexp"
	"strings"
)

const DefaultMaxInputLength = 1000

// suspiciousPatterns is a fixed best-effort blocklist for prompt injection
// phrasings. It is deliberately not configurable: known literal phrasings
// only, rejected with a generic error so callers cannot probe which pattern
// fired.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above|prior|all)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above|all)\s+instructions`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)new\s+instructions`),
	regexp.MustCompile(`(?i)system\s*:\s*`),
	regexp.MustCompile(`(?i)\[system\]`),
	regexp.MustCompile(`(?i)forget\s+everything`),
}

var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

type ValidationResult struct {
	Valid bool
	Error string
}

// ValidateInput checks presence, length, blankness and the injection
// blocklist. maxLen <= 0 falls back to DefaultMaxInputLength.
func ValidateInput(message string, maxLen int) ValidationResult {
	if maxLen <= 0 {
		maxLen = DefaultMaxInputLength
	}

	if message == "" {
		return ValidationResult{Valid: false, Error: "Message is required"}
	}
	if len(message) > maxLen {
		return ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("Message too long (max %d characters)", maxLen),
		}
	}
	if strings.TrimSpace(message) == "" {
		return ValidationResult{Valid: false, Error: "Message cannot be empty"}
	}

	for _, p := range suspiciousPatterns {
		if p.MatchString(message) {
			return ValidationResult{Valid: false, Error: "Invalid message content"}
		}
	}

	return ValidationResult{Valid: true}
}

// Sanitize escapes HTML-significant characters. It is applied exactly once
// per message, after validation, before the message reaches the prompt.
func Sanitize(message string) string {
	return htmlEscaper.Replace(message)
}

// OriginAllowed reports whether the declared Origin may call the API.
// Any localhost / 127.0.0.1 origin is accepted for development; everything
// else must be on the allow-list. An absent origin is rejected.
func OriginAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		return true
	}
	for _, o := range allowed {
		if origin == o {
			return true
		}
	}
	return false
}
