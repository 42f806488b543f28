package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "")
	t.Setenv("ESCALATION_WINDOW_MINUTES", "")
	t.Setenv("ESCALATION_DISPATCH_INTERVAL_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"service"}, cfg.Mail.Mailboxes)
	assert.Equal(t, time.Minute, cfg.Mail.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.Escalation.DispatchInterval())
	assert.Equal(t, 5*time.Minute, cfg.Escalation.RetryBackoff())
	assert.Equal(t, 0.7, cfg.Classifier.SecondaryThreshold)
	assert.Equal(t, 0.8, cfg.Classifier.GenericThreshold)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "20")
	t.Setenv("ESCALATION_DISPATCH_INTERVAL_SECONDS", "")
	t.Setenv("MAILBOXES", "service, aog ,,")
	t.Setenv("ESCALATION_WINDOW_MINUTES", "5,30,120")
	t.Setenv("ESCALATION_SMS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"service", "aog"}, cfg.Mail.Mailboxes)
	assert.Equal(t, 10*time.Second, cfg.Escalation.DispatchInterval())
	assert.Equal(t, 5*time.Minute, cfg.Escalation.Interval(domain.PriorityCritical))
	assert.Equal(t, 30*time.Minute, cfg.Escalation.Interval(domain.PriorityHigh))
	assert.Equal(t, 120*time.Minute, cfg.Escalation.Interval(domain.PriorityNormal))
	assert.Equal(t, 480*time.Minute, cfg.Escalation.Interval(domain.PriorityLow))
	assert.True(t, cfg.Escalation.SMSEnabled)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseWindowsFallsBack(t *testing.T) {
	tests := map[string][]int{
		"":            {15, 60, 240},
		"1,2":         {15, 60, 240},
		"10,x,30":     {15, 60, 240},
		"10,-1,30":    {15, 60, 240},
		" 10, 20,30 ": {10, 20, 30},
	}
	for raw, want := range tests {
		assert.Equal(t, want, parseWindows(raw), raw)
	}
}

func TestIntervalDefaults(t *testing.T) {
	var cfg EscalationConfig
	assert.Equal(t, 15*time.Minute, cfg.Interval(domain.PriorityCritical))
	assert.Equal(t, 60*time.Minute, cfg.Interval(domain.PriorityHigh))
	assert.Equal(t, 240*time.Minute, cfg.Interval(domain.PriorityNormal))
	assert.Equal(t, 480*time.Minute, cfg.Interval(domain.PriorityLow))
}
