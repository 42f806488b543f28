package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello world", Sanitize("<p>hello <b>world</b></p>", 100))
	assert.Equal(t, "a\tb\nc", Sanitize("a\tb\nc\x07", 100))
	assert.Equal(t, "abc...", Sanitize("abcdef", 3))
	assert.Equal(t, "", Sanitize("", 10))
	assert.Equal(t, strings.Repeat("é", 4)+"...", Sanitize(strings.Repeat("é", 10), 4))
}

func TestCleanSubject(t *testing.T) {
	tests := map[string]string{
		"Re: AOG at LAX":          "AOG at LAX",
		"FWD: RE: engine failure": "engine failure",
		"fw:":                     "No Subject",
		"   ":                     "No Subject",
		"Invoice 42":              "Invoice 42",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanSubject(in, 200), in)
	}
}

func TestExtractPhone(t *testing.T) {
	phone, ok := ExtractPhone("Call me at +1 (310) 555-0199 anytime")
	assert.True(t, ok)
	assert.Equal(t, "(310) 555-0199", phone)

	phone, ok = ExtractPhone("reach 212.555.0100")
	assert.True(t, ok)
	assert.Equal(t, "(212) 555-0100", phone)

	_, ok = ExtractPhone("no digits here")
	assert.False(t, ok)
}
