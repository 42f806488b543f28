package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/observability"
	apperrors "github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// RegisterMiddlewares installs the request deadline, the access log and the
// error envelope. The access log wraps the envelope so it records the final
// status of failed requests.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

type errorBody struct {
	Code      string         `json:"code"`
	Kind      apperrors.Kind `json:"kind,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// errorHandlingMiddleware turns handler errors and panics into the
// {"error": {...}} envelope. Transient failures are logged as warnings since
// the caller may retry them.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			domainErr := apperrors.ToDomainError(err)
			if metrics != nil {
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
			}
			requestID, _ := c.Locals("request_id").(string)
			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("path", c.Path()),
				zap.String("code", domainErr.Code),
				zap.Error(domainErr),
			}
			switch {
			case domainErr.Kind == apperrors.KindTransient:
				logger.Warn("request failed, retryable", fields...)
			case domainErr.HTTPStatus >= 500:
				logger.Error("request failed", fields...)
			}
			c.Status(domainErr.HTTPStatus)
			_ = c.JSON(fiber.Map{"error": errorBody{
				Code:      domainErr.Code,
				Kind:      domainErr.Kind,
				Message:   domainErr.Message,
				Details:   domainErr.Details,
				RequestID: requestID,
			}})
			err = nil
		}()
		return c.Next()
	}
}
