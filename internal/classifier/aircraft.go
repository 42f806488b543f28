package classifier

import (
	"regexp"
	"strings"
)

var registrationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bN[1-9][0-9]{0,4}[A-Z]{0,2}\b`),
	regexp.MustCompile(`\b[A-Z]{1,2}-[A-Z0-9]{3,5}\b`),
}

// ExtractAircraftRegistration returns the first registration-like token:
// US N-numbers first, then hyphenated national prefixes such as G-EZAB.
func ExtractAircraftRegistration(text string) *string {
	upper := strings.ToUpper(text)
	for _, pattern := range registrationPatterns {
		if match := pattern.FindString(upper); match != "" {
			return &match
		}
	}
	return nil
}
