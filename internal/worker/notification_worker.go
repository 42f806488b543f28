package worker

import (
	"github.com/spec-kit/aviation-mailbot/internal/events"
	"github.com/spec-kit/aviation-mailbot/internal/service"
)

// StartNotificationWorker registers event handlers and, when a relay is
// configured, forwards every event to NATS.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher, relay *events.NATSRelay) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if relay != nil && dispatcher != nil {
		relay.Register(dispatcher)
	}
}
