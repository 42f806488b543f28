package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/aviation-mailbot/internal/config"
)

func readLogLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		out = append(out, record)
	}
	return out
}

func TestLoggerStampsServiceAndCorrelation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailbot.log")
	logger, err := buildLogger(config.LoggerConfig{
		Level:   "debug",
		Format:  "json",
		Service: "aviation-mailbot",
		Env:     "production",
	}, []string{path})
	require.NoError(t, err)

	WithCorrelation(logger, "msg-1").Debug("message parsed")
	_ = logger.Sync()

	lines := readLogLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "message parsed", lines[0]["message"])
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "aviation-mailbot", lines[0]["service"])
	assert.Equal(t, "production", lines[0]["env"])
	assert.Equal(t, "msg-1", lines[0]["correlation_id"])
}

func TestLoggerFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailbot.log")
	logger, err := buildLogger(config.LoggerConfig{Level: "chatty", Format: "xml"}, []string{path})
	require.NoError(t, err)

	logger.Debug("dropped")
	logger.Info("kept")
	_ = logger.Sync()

	lines := readLogLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["message"])
	assert.NotContains(t, lines[0], "service")
}
