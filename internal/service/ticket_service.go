package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/internal/events"
	"github.com/spec-kit/aviation-mailbot/internal/repository"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// TicketService owns ticket numbering, SLA deadlines and lookups.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// TicketCreateInput describes a ticket derived from a classified message.
type TicketCreateInput struct {
	MessageID      *string
	Title          string
	Description    string
	CustomerEmail  string
	CustomerName   string
	CustomerPhone  *string
	Classification domain.Classification
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateTicket opens a ticket in its own transaction and publishes
// ticket_created once it is committed.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = s.CreateInTx(ctx, repos, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, ticketCreatedEvent(ticket, input.Classification))
	return ticket, nil
}

// CreateInTx allocates the next number for the UTC day, derives SLA
// deadlines and writes the ticket plus its audit entry. The caller owns the
// transaction so the number is consumed atomically with the insert.
func (s *TicketService) CreateInTx(ctx context.Context, repos repository.Repositories, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errorutil.NewValidationError("ticket title is required", nil)
	}
	c := input.Classification
	if !c.Priority.Valid() {
		return nil, errorutil.NewValidationError("ticket priority is invalid", map[string]any{"priority": c.Priority})
	}

	now := s.now().UTC()
	seq, err := repos.Tickets.NextSequence(ctx, domain.TicketDay(now))
	if err != nil {
		return nil, err
	}
	ticket := &domain.Ticket{
		Number:               domain.FormatTicketNumber(now, seq),
		MessageID:            input.MessageID,
		Title:                title,
		Description:          strings.TrimSpace(input.Description),
		Category:             c.Category,
		Priority:             c.Priority,
		Status:               domain.TicketStatusNew,
		CustomerEmail:        input.CustomerEmail,
		CustomerName:         input.CustomerName,
		CustomerPhone:        input.CustomerPhone,
		AircraftRegistration: c.AircraftRegistration,
		CreatedAt:            now,
	}
	ticket.ApplySLA()
	if err := repos.Tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	details := map[string]any{
		"ticket_number":    ticket.Number,
		"category":         c.Category,
		"priority":         c.Priority,
		"confidence":       c.Confidence,
		"matched_keywords": c.MatchedKeywords,
		"rule":             c.RuleName,
		"reasoning":        c.Reasoning,
	}
	if err := repos.Activities.Create(ctx, &domain.Activity{
		TicketID:    &ticket.ID,
		MessageID:   input.MessageID,
		Type:        domain.ActivityTicketCreated,
		Actor:       domain.ActorClassifier,
		Description: "Ticket " + ticket.Number + " created: " + c.Reasoning,
		Details:     details,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetTicket looks a ticket up by id or by its EMB number.
func (s *TicketService) GetTicket(ctx context.Context, idOrNumber string) (*domain.Ticket, error) {
	repos := s.store.Repositories()
	var (
		ticket *domain.Ticket
		err    error
	)
	if strings.HasPrefix(idOrNumber, domain.TicketNumberPrefix+"-") {
		ticket, err = repos.Tickets.GetByNumber(ctx, idOrNumber)
	} else {
		if _, perr := uuid.Parse(idOrNumber); perr != nil {
			return nil, errorutil.NewValidationError("ticket id must be a uuid or ticket number", map[string]any{"id": idOrNumber})
		}
		ticket, err = repos.Tickets.GetByID(ctx, idOrNumber)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.NewNotFound("ticket", map[string]any{"id": idOrNumber})
	}
	return ticket, err
}

// ListActivity returns the audit trail of a ticket, oldest first.
func (s *TicketService) ListActivity(ctx context.Context, ticketID string) ([]domain.Activity, error) {
	return s.store.Repositories().Activities.ListByTicket(ctx, ticketID)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.now, event)
}

func ticketCreatedEvent(ticket *domain.Ticket, c domain.Classification) events.Event {
	event := events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.Number,
			Category:     ticket.Category,
			Priority:     ticket.Priority,
			Confidence:   c.Confidence,
			Title:        ticket.Title,
		},
	}
	if ticket.MessageID != nil {
		event.MessageID = *ticket.MessageID
	}
	return event
}

func publish(ctx context.Context, dispatcher events.Dispatcher, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	_ = dispatcher.Publish(ctx, event)
}
