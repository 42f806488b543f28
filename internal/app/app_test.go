package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "aviation-mailbot", Version: "test"},
		Redis: config.RedisConfig{
			KeyPrefix:      "mailbot-test",
			LockTTLSeconds: 30,
		},
		Mail: config.MailConfig{
			Mailboxes:              []string{"service", "ops"},
			FetchLimit:             10,
			MaxConcurrentMailboxes: 2,
			SubjectMaxLength:       200,
			BodyMaxLength:          10000,
		},
		Classifier: config.ClassifierConfig{
			SecondaryThreshold: 0.7,
			GenericThreshold:   0.8,
		},
		Escalation: config.EscalationConfig{
			EmailMaxRetries: 3,
			SMSMaxRetries:   2,
			BatchSize:       50,
			CompanyName:     "Embassy Aviation",
		},
		Notification: config.NotificationConfig{
			EmailFrom:        "noreply@embassy-aviation.com",
			SendConfirmation: true,
		},
	}
}

func newTestServer(t *testing.T) (*App, *fiber.App) {
	t.Helper()
	mailbot, err := New(context.Background(), testConfig(), zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(mailbot.Close)
	return mailbot, mailbot.HTTP()
}

func doJSON(t *testing.T, server *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func data(t *testing.T, payload map[string]any) map[string]any {
	t.Helper()
	d, ok := payload["data"].(map[string]any)
	require.True(t, ok, "missing data envelope: %v", payload)
	return d
}

func aogPayload(id string) map[string]any {
	return map[string]any{
		"external_id":    id,
		"mailbox":        "service",
		"subject":        "AOG - Aircraft N123AB grounded at LAX",
		"body":           "Hydraulic failure, immediate assistance required.",
		"sender_address": "captain.smith@charter.example",
		"sender_name":    "Captain Smith",
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, server := newTestServer(t)

	status, body := doJSON(t, server, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
	assert.Equal(t, map[string]any{"store": "memory", "locks": "local"}, body["backends"])

	status, body = doJSON(t, server, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
	deps, ok := body["dependencies"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestProcessThenAcknowledge(t *testing.T) {
	_, server := newTestServer(t)

	status, body := doJSON(t, server, http.MethodPost, "/messages/process", aogPayload("aog-1"))
	require.Equal(t, http.StatusCreated, status, body)
	outcome := data(t, body)
	assert.Equal(t, "processed", outcome["status"])
	number, ok := outcome["ticket_number"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^EMB-\d{8}-0001$`, number)
	classification, ok := outcome["classification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "EMERGENCY", classification["category"])

	status, body = doJSON(t, server, http.MethodPost, "/messages/process", aogPayload("aog-1"))
	require.Equal(t, http.StatusOK, status)
	again := data(t, body)
	assert.Equal(t, "skipped", again["status"])
	assert.Equal(t, "already_processed", again["reason"])

	status, body = doJSON(t, server, http.MethodGet, "/tickets/"+number, nil)
	require.Equal(t, http.StatusOK, status, body)
	ticket := data(t, body)
	assert.Equal(t, "CRITICAL", ticket["priority"])
	assert.Equal(t, "N123AB", ticket["aircraft_registration"])
	assert.NotEmpty(t, ticket["activity"])

	status, body = doJSON(t, server, http.MethodGet, "/tickets/"+number+"/escalation", nil)
	require.Equal(t, http.StatusOK, status)
	steps, ok := data(t, body)["steps"].([]any)
	require.True(t, ok)
	assert.Len(t, steps, 6)

	status, body = doJSON(t, server, http.MethodPost, "/tickets/"+number+"/acknowledge", map[string]any{"reason": "on it"})
	require.Equal(t, http.StatusOK, status, body)
	stopped := data(t, body)
	assert.Equal(t, true, stopped["escalation_stopped"])
	assert.Equal(t, "on it", stopped["stop_reason"])
	for _, raw := range stopped["steps"].([]any) {
		assert.Equal(t, "SKIPPED", raw.(map[string]any)["status"])
	}

	status, body = doJSON(t, server, http.MethodPost, "/jobs/escalations", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, data(t, body)["sent"])
}

func TestEnqueueThenPoll(t *testing.T) {
	_, server := newTestServer(t)

	status, _ := doJSON(t, server, http.MethodPost, "/mailboxes/ops/messages", aogPayload("queued-1"))
	require.Equal(t, http.StatusAccepted, status)

	status, body := doJSON(t, server, http.MethodPost, "/jobs/poll?mailbox=ops", nil)
	require.Equal(t, http.StatusOK, status)
	reports, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, reports, 1)
	report := reports[0].(map[string]any)
	assert.EqualValues(t, 1, report["fetched"])
	assert.EqualValues(t, 1, report["processed"])

	status, body = doJSON(t, server, http.MethodPost, "/jobs/poll", nil)
	require.Equal(t, http.StatusOK, status)
	all, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, all, 2)
}

func TestErrorsUseEnvelope(t *testing.T) {
	_, server := newTestServer(t)

	status, body := doJSON(t, server, http.MethodPost, "/messages/process", map[string]any{"subject": "hello"})
	assert.Equal(t, http.StatusBadRequest, status)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	assert.Equal(t, "VALIDATION", errBody["kind"])
	assert.NotEmpty(t, errBody["request_id"])

	status, _ = doJSON(t, server, http.MethodGet, "/tickets/EMB-20260101-0042", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, server, http.MethodGet, "/tickets/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestConfigReload(t *testing.T) {
	_, server := newTestServer(t)

	status, body := doJSON(t, server, http.MethodPost, "/config/reload", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"classifier_rules", "contacts"}, data(t, body)["reloaded"])
}
