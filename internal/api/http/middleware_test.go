package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/observability"
	apperrors "github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

func newMiddlewareApp() *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, time.Second)
	app.Get("/mailbox", func(*fiber.Ctx) error {
		return apperrors.NewTransientError("mailbox unreachable", errors.New("dial tcp: timeout"))
	})
	app.Get("/panic", func(*fiber.Ctx) error {
		panic("classifier rules missing")
	})
	return app
}

func errorEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	out, ok := body["error"].(map[string]any)
	require.True(t, ok, string(raw))
	return out
}

func TestErrorEnvelopeCarriesKindAndRequestID(t *testing.T) {
	app := newMiddlewareApp()

	req := httptest.NewRequest(http.MethodGet, "/mailbox", nil)
	req.Header.Set(observability.RequestIDHeader, "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(observability.RequestIDHeader))
	body := errorEnvelope(t, resp)
	assert.Equal(t, "TRANSIENT_EXTERNAL_ERROR", body["code"])
	assert.Equal(t, "TRANSIENT", body["kind"])
	assert.Equal(t, "req-42", body["request_id"])
	assert.NotContains(t, body, "details")
}

func TestPanicBecomesInternalError(t *testing.T) {
	app := newMiddlewareApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/panic", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := errorEnvelope(t, resp)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.NotEmpty(t, body["request_id"])
}
