package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Channel is the transport used for a notification.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if c != ChannelEmail && c != ChannelSMS {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}

func (c *Channel) Scan(src any) error {
	v, err := scanEnum(src)
	if err != nil {
		return err
	}
	parsed, err := ParseChannel(v)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Channel) Value() (driver.Value, error) {
	return enumValue(string(c))
}

// StepStatus is the dispatcher state of an escalation step.
type StepStatus string

const (
	StepStatusScheduled StepStatus = "SCHEDULED"
	StepStatusPending   StepStatus = "PENDING"
	StepStatusSent      StepStatus = "SENT"
	StepStatusFailed    StepStatus = "FAILED"
	StepStatusSkipped   StepStatus = "SKIPPED"
)

var allowedStepTransitions = map[StepStatus][]StepStatus{
	StepStatusScheduled: {StepStatusPending, StepStatusSkipped},
	StepStatusPending:   {StepStatusSent, StepStatusScheduled, StepStatusFailed},
}

// CanTransition reports whether the dispatcher may move a step from s to next.
func (s StepStatus) CanTransition(next StepStatus) bool {
	for _, allowed := range allowedStepTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSent || s == StepStatusFailed || s == StepStatusSkipped
}

func (s *StepStatus) Scan(src any) error {
	v, err := scanEnum(src)
	if err != nil {
		return err
	}
	status := StepStatus(v)
	switch status {
	case StepStatusScheduled, StepStatusPending, StepStatusSent, StepStatusFailed, StepStatusSkipped:
		*s = status
		return nil
	}
	return fmt.Errorf("unknown step status %q", v)
}

func (s StepStatus) Value() (driver.Value, error) {
	return enumValue(string(s))
}

// EscalationStep is one scheduled notification to one contact on one channel.
type EscalationStep struct {
	ID          string
	TicketID    string
	StepNumber  int
	Channel     Channel
	ContactName string
	ContactRole string
	Recipient   string
	Subject     string
	Body        string
	Status      StepStatus
	ScheduledAt time.Time
	SentAt      *time.Time
	RetryCount  int
	MaxRetries  int
	LastError   *string
	ExternalID  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RegisterFailure increments the retry counter and either reschedules the
// step at retryAt or marks it FAILED once the attempt budget is spent.
func (s *EscalationStep) RegisterFailure(err error, retryable bool, retryAt, now time.Time) {
	msg := err.Error()
	s.LastError = &msg
	s.UpdatedAt = now
	if s.RetryCount < s.MaxRetries {
		s.RetryCount++
	}
	if retryable && s.RetryCount < s.MaxRetries {
		s.Status = StepStatusScheduled
		s.ScheduledAt = retryAt
		return
	}
	s.Status = StepStatusFailed
}
