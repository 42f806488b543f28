package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Priority enumerates SLA urgency.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}

// ParsePriority validates free text coming from storage or configuration.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank orders priorities so that a higher rank is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// ResponseWindow is the time allowed for a first response.
func (p Priority) ResponseWindow() time.Duration {
	switch p {
	case PriorityCritical:
		return 15 * time.Minute
	case PriorityHigh:
		return 60 * time.Minute
	case PriorityLow:
		return 8 * time.Hour
	default:
		return 4 * time.Hour
	}
}

// ResolutionWindow is the time allowed to resolve the ticket.
func (p Priority) ResolutionWindow() time.Duration {
	switch p {
	case PriorityCritical:
		return 2 * time.Hour
	case PriorityHigh:
		return 8 * time.Hour
	case PriorityLow:
		return 48 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func (p *Priority) Scan(src any) error {
	s, err := scanEnum(src)
	if err != nil {
		return err
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Priority) Value() (driver.Value, error) {
	return enumValue(string(p))
}
