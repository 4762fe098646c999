package synth

import (
	"regexp"
	"strings"
)

const maxInputLength = 2000

// Partner inputs are untrusted free text that ends up inside a model prompt.
// Strip the common instruction-injection shapes before they get there.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?im)^\s*(system|assistant|user|model)\s*:`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)new\s+(system\s+)?instructions?\s*:`),
	regexp.MustCompile("```"),
}

// SanitizeInput strips injection directives and bounds the input length.
func SanitizeInput(input string) string {
	sanitized := input
	for _, pattern := range injectionPatterns {
		sanitized = pattern.ReplaceAllString(sanitized, "")
	}
	sanitized = strings.TrimSpace(sanitized)
	if len(sanitized) > maxInputLength {
		sanitized = sanitized[:maxInputLength]
	}
	return sanitized
}
