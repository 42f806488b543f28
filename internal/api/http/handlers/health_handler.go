package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/aviation-mailbot/internal/persistence"
)

// HealthHandler reports whether the mailbot can take mail and dispatch
// escalations.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
}

func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis}
}

// Live reports liveness and which backends the process runs on.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	store, coordination := "memory", "local"
	if h.postgres.Enabled() {
		store = "postgres"
	}
	if h.redis.Enabled() {
		coordination = "redis"
	}
	return c.JSON(fiber.Map{
		"status":   "alive",
		"service":  h.serviceName,
		"version":  h.version,
		"backends": fiber.Map{
			"store": store,
			"locks": coordination,
		},
	})
}

// Ready pings the ticket store and the lock backend. A backend that is not
// configured reports "disabled" and does not fail readiness.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true
	for name, dep := range map[string]struct {
		enabled bool
		ping    func(context.Context) error
	}{
		"postgres": {h.postgres.Enabled(), h.postgres.Ping},
		"redis":    {h.redis.Enabled(), h.redis.Ping},
	} {
		if !dep.enabled {
			depStatus[name] = "disabled"
			continue
		}
		if err := dep.ping(ctx); err != nil {
			depStatus[name] = err.Error()
			ready = false
		} else {
			depStatus[name] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
