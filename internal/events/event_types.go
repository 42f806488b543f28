package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventMessageSkipped       EventType = "message_skipped"
	EventMessageFailed        EventType = "message_failed"
	EventEscalationStarted    EventType = "escalation_started"
	EventEscalationStepSent   EventType = "escalation_step_sent"
	EventEscalationStepFailed EventType = "escalation_step_failed"
	EventEscalationStopped    EventType = "escalation_stopped"
)

// AllEventTypes lists every event the pipeline emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventMessageSkipped,
	EventMessageFailed,
	EventEscalationStarted,
	EventEscalationStepSent,
	EventEscalationStepFailed,
	EventEscalationStopped,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	TicketID      string    `json:"ticket_id,omitempty"`
	MessageID     string    `json:"message_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload,omitempty"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, at time.Time, payload any) Event {
	return Event{ID: uuid.NewString(), Type: eventType, Timestamp: at, Payload: payload}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string          `json:"ticket_number"`
	Category     domain.Category `json:"category"`
	Priority     domain.Priority `json:"priority"`
	Confidence   float64         `json:"confidence"`
	Title        string          `json:"title"`
}

// MessageOutcomePayload payload for skipped and failed messages.
type MessageOutcomePayload struct {
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

// EscalationStartedPayload payload.
type EscalationStartedPayload struct {
	Steps    int `json:"steps"`
	Contacts int `json:"contacts"`
}

// EscalationStepPayload payload for sent and failed steps.
type EscalationStepPayload struct {
	StepID     string            `json:"step_id"`
	StepNumber int               `json:"step_number"`
	Channel    domain.Channel    `json:"channel"`
	Status     domain.StepStatus `json:"status"`
	RetryCount int               `json:"retry_count"`
	Error      string            `json:"error,omitempty"`
}

// EscalationStoppedPayload payload.
type EscalationStoppedPayload struct {
	Reason       string `json:"reason"`
	StepsSkipped int    `json:"steps_skipped"`
}
