package dto

import (
	"time"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

// TicketResponse is the full view of a ticket.
type TicketResponse struct {
	ID                   string              `json:"id"`
	Number               string              `json:"ticket_number"`
	MessageID            *string             `json:"message_id"`
	Title                string              `json:"title"`
	Description          string              `json:"description"`
	Category             domain.Category     `json:"category"`
	Priority             domain.Priority     `json:"priority"`
	Status               domain.TicketStatus `json:"status"`
	CustomerEmail        string              `json:"customer_email"`
	CustomerName         string              `json:"customer_name"`
	CustomerPhone        *string             `json:"customer_phone"`
	AircraftRegistration *string             `json:"aircraft_registration"`
	ResponseDueAt        time.Time           `json:"response_due_at"`
	ResolutionDueAt      time.Time           `json:"resolution_due_at"`
	EscalationLevel      int                 `json:"escalation_level"`
	LastEscalatedAt      *time.Time          `json:"last_escalated_at"`
	EscalationStopped    bool                `json:"escalation_stopped"`
	EscalationStopReason *string             `json:"escalation_stop_reason"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// TicketDetailResponse adds the audit trail.
type TicketDetailResponse struct {
	TicketResponse
	Activity []ActivityResponse `json:"activity"`
}

// ActivityResponse is one audit entry.
type ActivityResponse struct {
	ID          string              `json:"id"`
	MessageID   *string             `json:"message_id"`
	Type        domain.ActivityType `json:"type"`
	Actor       domain.ActorType    `json:"actor"`
	Description string              `json:"description"`
	Details     map[string]any      `json:"details,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// AcknowledgeRequest payload.
type AcknowledgeRequest struct {
	Reason string `json:"reason"`
}
