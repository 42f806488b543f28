package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/aviation-mailbot/internal/config"
	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

// PlannerConfig controls step spacing, retry budgets and message copy.
type PlannerConfig struct {
	Interval        func(domain.Priority) time.Duration
	EmailMaxRetries int
	SMSMaxRetries   int
	SMSEnabled      bool
	CompanyName     string
}

// PlannerConfigFrom maps escalation settings onto the planner.
func PlannerConfigFrom(cfg config.EscalationConfig) PlannerConfig {
	return PlannerConfig{
		Interval:        cfg.Interval,
		EmailMaxRetries: cfg.EmailMaxRetries,
		SMSMaxRetries:   cfg.SMSMaxRetries,
		SMSEnabled:      cfg.SMSEnabled,
		CompanyName:     cfg.CompanyName,
	}
}

// EscalationPlanner turns a ticket and its resolved contacts into a
// schedule of notification steps. It does no I/O.
type EscalationPlanner struct {
	cfg PlannerConfig
}

func NewEscalationPlanner(cfg PlannerConfig) *EscalationPlanner {
	if cfg.Interval == nil {
		cfg.Interval = defaultInterval
	}
	if cfg.CompanyName == "" {
		cfg.CompanyName = "Embassy Aviation"
	}
	return &EscalationPlanner{cfg: cfg}
}

func defaultInterval(p domain.Priority) time.Duration {
	switch p {
	case domain.PriorityCritical:
		return 15 * time.Minute
	case domain.PriorityHigh:
		return 60 * time.Minute
	case domain.PriorityLow:
		return 480 * time.Minute
	default:
		return 240 * time.Minute
	}
}

// Plan returns one step per contact and channel. Contact i (1-based) is
// notified at created_at + i*interval(priority). SMS is planned only for
// contacts with a phone, and only for CRITICAL tickets unless SMS is
// globally enabled.
func (p *EscalationPlanner) Plan(ticket *domain.Ticket, contacts []domain.Contact) []domain.EscalationStep {
	interval := p.cfg.Interval(ticket.Priority)
	smsAllowed := ticket.Priority == domain.PriorityCritical || p.cfg.SMSEnabled

	steps := make([]domain.EscalationStep, 0, len(contacts)*2)
	for i, contact := range contacts {
		number := i + 1
		at := ticket.CreatedAt.Add(time.Duration(number) * interval)
		if contact.HasEmail() {
			steps = append(steps, domain.EscalationStep{
				TicketID:    ticket.ID,
				StepNumber:  number,
				Channel:     domain.ChannelEmail,
				ContactName: contact.Name,
				ContactRole: contact.Role,
				Recipient:   contact.Email,
				Subject:     p.emailSubject(ticket, number),
				Body:        p.emailBody(ticket, contact, number),
				Status:      domain.StepStatusScheduled,
				ScheduledAt: at,
				MaxRetries:  p.cfg.EmailMaxRetries,
				CreatedAt:   ticket.CreatedAt,
			})
		}
		if contact.HasPhone() && smsAllowed {
			steps = append(steps, domain.EscalationStep{
				TicketID:    ticket.ID,
				StepNumber:  number,
				Channel:     domain.ChannelSMS,
				ContactName: contact.Name,
				ContactRole: contact.Role,
				Recipient:   contact.Phone,
				Body:        p.smsBody(ticket),
				Status:      domain.StepStatusScheduled,
				ScheduledAt: at,
				MaxRetries:  p.cfg.SMSMaxRetries,
				CreatedAt:   ticket.CreatedAt,
			})
		}
	}
	return steps
}

func (p *EscalationPlanner) emailSubject(ticket *domain.Ticket, number int) string {
	return fmt.Sprintf("[%s] Escalation #%d - %s", p.cfg.CompanyName, number, ticket.Title)
}

func (p *EscalationPlanner) emailBody(ticket *domain.Ticket, contact domain.Contact, number int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", contact.Name)
	fmt.Fprintf(&b, "Ticket %s has not been acknowledged and is now at escalation level %d.\n\n", ticket.Number, number)
	fmt.Fprintf(&b, "Title: %s\n", ticket.Title)
	fmt.Fprintf(&b, "Category: %s\n", ticket.Category)
	fmt.Fprintf(&b, "Priority: %s\n", ticket.Priority)
	fmt.Fprintf(&b, "Customer: %s <%s>\n", ticket.CustomerName, ticket.CustomerEmail)
	if ticket.CustomerPhone != nil {
		fmt.Fprintf(&b, "Customer phone: %s\n", *ticket.CustomerPhone)
	}
	if ticket.AircraftRegistration != nil {
		fmt.Fprintf(&b, "Aircraft: %s\n", *ticket.AircraftRegistration)
	}
	fmt.Fprintf(&b, "Response due: %s\n", ticket.ResponseDueAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "\n%s\n\n-- %s", ticket.Description, p.cfg.CompanyName)
	return b.String()
}

func (p *EscalationPlanner) smsBody(ticket *domain.Ticket) string {
	body := fmt.Sprintf("%s Alert: Ticket #%s needs attention", p.cfg.CompanyName, ticket.Number)
	if ticket.Priority == domain.PriorityCritical {
		body += " (CRITICAL)"
	}
	return body
}
