// Package connector holds the transport-facing collaborators of the
// pipeline: where inbound mail comes from and how notifications leave.
package connector

import (
	"context"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

// MailSource yields normalized inbound messages for a mailbox.
type MailSource interface {
	FetchUnread(ctx context.Context, mailbox string, limit int) ([]domain.InboundMessage, error)
	MarkRead(ctx context.Context, mailbox, externalID string) error
}

// Inbox is a MailSource that can also accept pushed messages.
type Inbox interface {
	MailSource
	Enqueue(ctx context.Context, msg domain.InboundMessage) error
}

// Notification is one outbound email or SMS. CorrelationID is stable
// across retries so a provider can deduplicate repeated sends.
type Notification struct {
	CorrelationID string
	Channel       domain.Channel
	To            string
	Subject       string
	Body          string
}

// Sender delivers a notification and returns the provider message id.
// Any error that is not a validation or configuration error is retried.
type Sender interface {
	Send(ctx context.Context, n Notification) (string, error)
}
