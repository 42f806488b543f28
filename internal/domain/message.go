package domain

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// ProcessingState tracks a message through the intake pipeline.
type ProcessingState string

const (
	StateReceived             ProcessingState = "RECEIVED"
	StateParsing              ProcessingState = "PARSING"
	StateClassifying          ProcessingState = "CLASSIFYING"
	StateCreatingTicket       ProcessingState = "CREATING_TICKET"
	StateSendingConfirmation  ProcessingState = "SENDING_CONFIRMATION"
	StateSchedulingEscalation ProcessingState = "SCHEDULING_ESCALATION"
	StateCompleted            ProcessingState = "COMPLETED"
	StateFailed               ProcessingState = "FAILED"
	StateSkipped              ProcessingState = "SKIPPED"
)

// Every non-terminal state may also move to FAILED. A state may move to
// itself so that an interrupted run can re-enter it. A run interrupted
// before its ticket committed restarts at PARSING.
var allowedStateTransitions = map[ProcessingState][]ProcessingState{
	StateReceived:             {StateParsing},
	StateParsing:              {StateClassifying, StateSkipped},
	StateClassifying:          {StateCreatingTicket, StateSkipped, StateParsing},
	StateCreatingTicket:       {StateSendingConfirmation, StateParsing},
	StateSendingConfirmation:  {StateSchedulingEscalation},
	StateSchedulingEscalation: {StateCompleted},
}

// IsTerminal reports whether the pipeline is finished with a message.
func (s ProcessingState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSkipped
}

func (s ProcessingState) Valid() bool {
	switch s {
	case StateReceived, StateParsing, StateClassifying, StateCreatingTicket, StateSendingConfirmation,
		StateSchedulingEscalation, StateCompleted, StateFailed, StateSkipped:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal intake move.
func (s ProcessingState) CanTransition(to ProcessingState) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateFailed || to == s {
		return true
	}
	for _, allowed := range allowedStateTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *ProcessingState) Scan(src any) error {
	v, err := scanEnum(src)
	if err != nil {
		return err
	}
	state := ProcessingState(v)
	if !state.Valid() {
		return fmt.Errorf("unknown processing state %q", v)
	}
	*s = state
	return nil
}

func (s ProcessingState) Value() (driver.Value, error) {
	return enumValue(string(s))
}

// Message is the idempotency record for one external message id.
type Message struct {
	ID                  string
	ExternalID          string
	Mailbox             string
	Sender              string
	Subject             string
	Fingerprint         string
	State               ProcessingState
	TicketID            *string
	StatusReason        string
	ErrorCount          int
	LastError           *string
	ProcessingStartedAt *time.Time
	CompletedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Transition moves the message to the next state, stamping completion
// time when the state is terminal.
func (m *Message) Transition(to ProcessingState, now time.Time) error {
	if !m.State.CanTransition(to) {
		return fmt.Errorf("illegal message transition %s -> %s", m.State, to)
	}
	m.State = to
	m.UpdatedAt = now
	if to.IsTerminal() {
		m.CompletedAt = &now
	}
	return nil
}

// Fail records the error and moves the message to FAILED.
func (m *Message) Fail(err error, now time.Time) {
	msg := err.Error()
	m.ErrorCount++
	m.LastError = &msg
	m.State = StateFailed
	m.UpdatedAt = now
	m.CompletedAt = &now
}

// Fingerprint is a stable hash over subject and body.
func Fingerprint(subject, body string) string {
	sum := blake3.Sum256([]byte(subject + "\x00" + body))
	return hex.EncodeToString(sum[:])
}
