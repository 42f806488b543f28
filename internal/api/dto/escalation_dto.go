package dto

import (
	"time"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

// EscalationStepResponse is one planned notification.
type EscalationStepResponse struct {
	ID          string            `json:"id"`
	StepNumber  int               `json:"step_number"`
	Channel     domain.Channel    `json:"channel"`
	ContactName string            `json:"contact_name"`
	ContactRole string            `json:"contact_role"`
	Recipient   string            `json:"recipient"`
	Status      domain.StepStatus `json:"status"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	SentAt      *time.Time        `json:"sent_at"`
	RetryCount  int               `json:"retry_count"`
	MaxRetries  int               `json:"max_retries"`
	LastError   *string           `json:"last_error"`
	ExternalID  *string           `json:"external_id"`
}

// EscalationStatusResponse pairs a ticket's escalation flags with its steps.
type EscalationStatusResponse struct {
	TicketID          string                   `json:"ticket_id"`
	TicketNumber      string                   `json:"ticket_number"`
	EscalationLevel   int                      `json:"escalation_level"`
	LastEscalatedAt   *time.Time               `json:"last_escalated_at"`
	EscalationStopped bool                     `json:"escalation_stopped"`
	StopReason        *string                  `json:"stop_reason"`
	Steps             []EscalationStepResponse `json:"steps"`
}
