package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew          TicketStatus = "NEW"
	TicketStatusAcknowledged TicketStatus = "ACKNOWLEDGED"
	TicketStatusInProgress   TicketStatus = "IN_PROGRESS"
	TicketStatusResolved     TicketStatus = "RESOLVED"
	TicketStatusClosed       TicketStatus = "CLOSED"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusAcknowledged, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

func (s *TicketStatus) Scan(src any) error {
	v, err := scanEnum(src)
	if err != nil {
		return err
	}
	status := TicketStatus(v)
	if !status.Valid() {
		return fmt.Errorf("unknown ticket status %q", v)
	}
	*s = status
	return nil
}

func (s TicketStatus) Value() (driver.Value, error) {
	return enumValue(string(s))
}

// TicketNumberPrefix starts every human ticket number.
const TicketNumberPrefix = "EMB"

// FormatTicketNumber renders EMB-YYYYMMDD-NNNN for the UTC day of at.
func FormatTicketNumber(at time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", TicketNumberPrefix, at.UTC().Format("20060102"), seq)
}

// TicketDay truncates a timestamp to the UTC day used for numbering.
func TicketDay(at time.Time) time.Time {
	y, m, d := at.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Ticket is the aggregate created for each accepted service request.
type Ticket struct {
	ID                   string
	Number               string
	MessageID            *string
	Title                string
	Description          string
	Category             Category
	Priority             Priority
	Status               TicketStatus
	CustomerEmail        string
	CustomerName         string
	CustomerPhone        *string
	AircraftRegistration *string
	ResponseDueAt        time.Time
	ResolutionDueAt      time.Time
	EscalationLevel      int
	LastEscalatedAt      *time.Time
	EscalationStopped    bool
	EscalationStopReason *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ApplySLA derives both deadlines from priority and creation time.
func (t *Ticket) ApplySLA() {
	t.ResponseDueAt = t.CreatedAt.Add(t.Priority.ResponseWindow())
	t.ResolutionDueAt = t.CreatedAt.Add(t.Priority.ResolutionWindow())
}

// RecordEscalation raises the escalation level; it never lowers it.
func (t *Ticket) RecordEscalation(stepNumber int, at time.Time) {
	if stepNumber > t.EscalationLevel {
		t.EscalationLevel = stepNumber
	}
	t.LastEscalatedAt = &at
	t.UpdatedAt = at
}
