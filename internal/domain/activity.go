package domain

import "time"

// ActivityType captures what an audit entry records.
type ActivityType string

const (
	ActivityMessageReceived        ActivityType = "message_received"
	ActivityMessageSkipped         ActivityType = "message_skipped"
	ActivityMessageFailed          ActivityType = "message_failed"
	ActivityTicketCreated          ActivityType = "ticket_created"
	ActivityConfirmationSent       ActivityType = "confirmation_sent"
	ActivityConfirmationFailed     ActivityType = "confirmation_failed"
	ActivityEscalationStarted      ActivityType = "escalation_started"
	ActivityEscalationStepExecuted ActivityType = "escalation_step_executed"
	ActivityEscalationStepFailed   ActivityType = "escalation_step_failed"
	ActivityEscalationStopped      ActivityType = "escalation_stopped"
	ActivitySystemError            ActivityType = "system_error"
)

// ActorType indicates who performed an audited action.
type ActorType string

const (
	ActorSystem     ActorType = "SYSTEM"
	ActorClassifier ActorType = "CLASSIFIER"
	ActorDispatcher ActorType = "DISPATCHER"
	ActorOperator   ActorType = "OPERATOR"
)

// Activity is an immutable audit trail entry.
type Activity struct {
	ID          string
	TicketID    *string
	MessageID   *string
	Type        ActivityType
	Actor       ActorType
	Description string
	Details     map[string]any
	CreatedAt   time.Time
}
