package textutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	controlPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	phonePattern   = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)
)

var subjectPrefixes = []string{"re:", "fwd:", "fw:", "forward:", "reply:"}

// Sanitize strips markup and control characters and caps the length in runes.
func Sanitize(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	text = tagPattern.ReplaceAllString(text, "")
	text = controlPattern.ReplaceAllString(text, "")
	text = strings.ToValidUTF8(text, "")
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		runes := []rune(text)
		text = string(runes[:maxLen]) + "..."
	}
	return strings.TrimSpace(text)
}

// CleanSubject removes reply and forward prefixes, repeatedly.
func CleanSubject(subject string, maxLen int) string {
	subject = strings.TrimSpace(subject)
	for {
		lowered := strings.ToLower(subject)
		trimmed := false
		for _, prefix := range subjectPrefixes {
			if strings.HasPrefix(lowered, prefix) {
				subject = strings.TrimSpace(subject[len(prefix):])
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}
	subject = Sanitize(subject, maxLen)
	if subject == "" {
		return "No Subject"
	}
	return subject
}

// ExtractPhone returns the first North American number in text formatted
// as (NNN) NNN-NNNN.
func ExtractPhone(text string) (string, bool) {
	m := phonePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("(%s) %s-%s", m[1], m[2], m[3]), true
}
