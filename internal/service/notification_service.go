package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/config"
	"github.com/spec-kit/aviation-mailbot/internal/connector"
	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/internal/events"
)

// NotificationService composes outbound messages and hands them to the sender.
type NotificationService struct {
	sender      connector.Sender
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	cfg         config.NotificationConfig
	companyName string
}

// NewNotificationService creates the service.
func NewNotificationService(sender connector.Sender, dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, companyName string) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		sender:      sender,
		dispatcher:  dispatcher,
		logger:      logger,
		cfg:         cfg,
		companyName: companyName,
	}
}

// ConfirmationEnabled reports whether customers get a receipt email.
func (n *NotificationService) ConfirmationEnabled() bool {
	return n.cfg.SendConfirmation && n.sender != nil
}

// ConfirmationID is the correlation id used for a ticket's receipt.
func ConfirmationID(ticketID string) string {
	return "confirmation-" + ticketID
}

// SendConfirmation emails the customer that their request was logged.
func (n *NotificationService) SendConfirmation(ctx context.Context, ticket *domain.Ticket) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", ticket.CustomerName)
	fmt.Fprintf(&b, "We have received your request and opened ticket %s.\n\n", ticket.Number)
	fmt.Fprintf(&b, "Subject: %s\n", ticket.Title)
	fmt.Fprintf(&b, "Priority: %s\n", ticket.Priority)
	fmt.Fprintf(&b, "Expected response by: %s\n", ticket.ResponseDueAt.UTC().Format(time.RFC1123))
	if ticket.AircraftRegistration != nil {
		fmt.Fprintf(&b, "Aircraft: %s\n", *ticket.AircraftRegistration)
	}
	fmt.Fprintf(&b, "\nPlease quote %s in any follow-up.\n\n-- %s", ticket.Number, n.companyName)

	return n.sender.Send(ctx, connector.Notification{
		CorrelationID: ConfirmationID(ticket.ID),
		Channel:       domain.ChannelEmail,
		To:            ticket.CustomerEmail,
		Subject:       fmt.Sprintf("[%s] Ticket %s received - %s", n.companyName, ticket.Number, ticket.Title),
		Body:          b.String(),
	})
}

// SendStep delivers one escalation step. The step id is the correlation id
// so a resend after a crash can be deduplicated downstream.
func (n *NotificationService) SendStep(ctx context.Context, step *domain.EscalationStep) (string, error) {
	return n.sender.Send(ctx, connector.Notification{
		CorrelationID: step.ID,
		Channel:       step.Channel,
		To:            step.Recipient,
		Subject:       step.Subject,
		Body:          step.Body,
	})
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.SubscribeAll(n.handleEvent)
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("message_id", event.MessageID),
		zap.Any("payload", event.Payload))
	return nil
}
