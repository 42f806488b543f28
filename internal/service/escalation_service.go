package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/internal/events"
	"github.com/spec-kit/aviation-mailbot/internal/lock"
	"github.com/spec-kit/aviation-mailbot/internal/observability"
	"github.com/spec-kit/aviation-mailbot/internal/repository"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

const dispatchLockKey = "escalation:dispatch"

// ContactResolver yields the ordered escalation contacts for a ticket.
type ContactResolver interface {
	Resolve(category domain.Category, priority domain.Priority) ([]domain.Contact, error)
}

// EscalationSettings tunes the dispatch cycle.
type EscalationSettings struct {
	RetryBackoff time.Duration
	BatchSize    int
	Pause        time.Duration
	LockTTL      time.Duration
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	Store      repository.Store
	Contacts   ContactResolver
	Planner    *EscalationPlanner
	Notifier   *NotificationService
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Settings   EscalationSettings
	Clock      func() time.Time
}

// EscalationService plans, dispatches and stops escalation steps.
type EscalationService struct {
	store      repository.Store
	contacts   ContactResolver
	planner    *EscalationPlanner
	notifier   *NotificationService
	locker     lock.Locker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	settings   EscalationSettings
	limiter    *rate.Limiter
	now        func() time.Time
}

// EscalationStatus is a ticket's escalation flags plus its ordered steps.
type EscalationStatus struct {
	Ticket *domain.Ticket
	Steps  []domain.EscalationStep
}

// DispatchReport summarises one dispatch cycle.
type DispatchReport struct {
	LockHeld bool `json:"lock_held"`
	Released int  `json:"released"`
	Due      int  `json:"due"`
	Sent     int  `json:"sent"`
	Retried  int  `json:"retried"`
	Failed   int  `json:"failed"`
	Skipped  int  `json:"skipped"`
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	s := &EscalationService{
		store:      deps.Store,
		contacts:   deps.Contacts,
		planner:    deps.Planner,
		notifier:   deps.Notifier,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		settings:   deps.Settings,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker()
	}
	if s.planner == nil {
		s.planner = NewEscalationPlanner(PlannerConfig{})
	}
	if s.settings.RetryBackoff <= 0 {
		s.settings.RetryBackoff = 5 * time.Minute
	}
	if s.settings.BatchSize <= 0 {
		s.settings.BatchSize = 100
	}
	if s.settings.LockTTL <= 0 {
		s.settings.LockTTL = 2 * time.Minute
	}
	limit := rate.Inf
	if s.settings.Pause > 0 {
		limit = rate.Every(s.settings.Pause)
	}
	s.limiter = rate.NewLimiter(limit, 1)
	return s
}

// PlanInTx resolves contacts and writes the step batch for a ticket. A
// ticket that already has steps is left untouched and nil is returned, so
// planning is safe to repeat.
func (s *EscalationService) PlanInTx(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket) ([]domain.EscalationStep, error) {
	existing, err := repos.Steps.CountByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, nil
	}
	contacts, err := s.contacts.Resolve(ticket.Category, ticket.Priority)
	if err != nil {
		return nil, err
	}
	steps := s.planner.Plan(ticket, contacts)
	if len(steps) == 0 {
		return nil, errorutil.NewConfigurationError("no reachable escalation contacts", map[string]any{
			"category": ticket.Category,
			"priority": ticket.Priority,
		})
	}
	if err := repos.Steps.CreateBatch(ctx, steps); err != nil {
		return nil, err
	}
	if err := repos.Activities.Create(ctx, &domain.Activity{
		TicketID:    &ticket.ID,
		MessageID:   ticket.MessageID,
		Type:        domain.ActivityEscalationStarted,
		Actor:       domain.ActorSystem,
		Description: "Escalation planned",
		Details: map[string]any{
			"steps":    len(steps),
			"contacts": len(contacts),
			"first_at": steps[0].ScheduledAt,
		},
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return nil, err
	}
	return steps, nil
}

// StartEscalation plans escalation for an existing ticket. Starting a ticket
// that already has steps is a no-op; a stopped ticket is a conflict.
func (s *EscalationService) StartEscalation(ctx context.Context, ticketID string) (*EscalationStatus, error) {
	var (
		ticket  *domain.Ticket
		planned []domain.EscalationStep
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = getTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		if ticket.EscalationStopped {
			return errorutil.NewConflict("escalation already stopped for ticket", map[string]any{"ticket": ticket.Number})
		}
		planned, err = s.PlanInTx(ctx, repos, ticket)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(planned) > 0 {
		s.publishStarted(ctx, ticket, planned)
	}
	return s.Status(ctx, ticketID)
}

// StopEscalation marks the ticket stopped and skips every SCHEDULED step.
// A step already PENDING may still be delivered. Stopping twice is harmless.
func (s *EscalationService) StopEscalation(ctx context.Context, ticketID, reason string) (*EscalationStatus, error) {
	if reason == "" {
		reason = "acknowledged"
	}
	var (
		ticket  *domain.Ticket
		stopped bool
		skipped int
	)
	now := s.now().UTC()
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = getTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		stopped, err = repos.Tickets.StopEscalation(ctx, ticket.ID, reason, now)
		if err != nil || !stopped {
			return err
		}
		skipped, err = repos.Steps.SkipScheduled(ctx, ticket.ID, now)
		if err != nil {
			return err
		}
		return repos.Activities.Create(ctx, &domain.Activity{
			TicketID:    &ticket.ID,
			Type:        domain.ActivityEscalationStopped,
			Actor:       domain.ActorOperator,
			Description: "Escalation stopped: " + reason,
			Details:     map[string]any{"reason": reason, "steps_skipped": skipped},
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}
	if stopped {
		s.logger.Info("escalation stopped",
			zap.String("ticket", ticket.Number),
			zap.String("reason", reason),
			zap.Int("steps_skipped", skipped))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventEscalationStopped,
			TicketID: ticket.ID,
			Payload:  events.EscalationStoppedPayload{Reason: reason, StepsSkipped: skipped},
		})
	}
	return s.Status(ctx, ticket.ID)
}

// Status returns the ticket and its steps ordered by step number and channel.
func (s *EscalationService) Status(ctx context.Context, ticketID string) (*EscalationStatus, error) {
	repos := s.store.Repositories()
	ticket, err := getTicket(ctx, repos, ticketID)
	if err != nil {
		return nil, err
	}
	steps, err := repos.Steps.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &EscalationStatus{Ticket: ticket, Steps: steps}, nil
}

// ProcessDue runs one dispatch cycle: due steps are executed earliest first,
// one at a time, with a pause between sends. A failing step never aborts
// the cycle. Only one cycle runs at a time across workers.
func (s *EscalationService) ProcessDue(ctx context.Context) (DispatchReport, error) {
	var report DispatchReport
	release, ok, err := s.locker.Acquire(ctx, dispatchLockKey, s.settings.LockTTL)
	if err != nil {
		return report, err
	}
	if !ok {
		report.LockHeld = true
		s.logger.Debug("escalation cycle already running elsewhere")
		return report, nil
	}
	defer release()

	if err := s.releaseStale(ctx, &report); err != nil {
		return report, err
	}

	due, err := s.store.Repositories().Steps.ListDue(ctx, s.now().UTC(), s.settings.BatchSize)
	if err != nil {
		return report, err
	}
	report.Due = len(due)
	for i := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}
		status, err := s.executeStep(ctx, &due[i])
		if err != nil {
			s.logger.Error("escalation step execution failed",
				zap.String("step_id", due[i].ID),
				zap.Error(err))
			report.Failed++
			continue
		}
		switch status {
		case domain.StepStatusSent:
			report.Sent++
		case domain.StepStatusScheduled:
			report.Retried++
		case domain.StepStatusFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}
	if report.Due > 0 {
		s.logger.Info("escalation cycle finished",
			zap.Int("due", report.Due),
			zap.Int("sent", report.Sent),
			zap.Int("retried", report.Retried),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped))
	}
	return report, nil
}

// releaseStale recovers steps left PENDING by a cycle that died between
// claiming and recording. Such a step may already have been delivered, so
// the resend relies on the step id as the sender's correlation id.
func (s *EscalationService) releaseStale(ctx context.Context, report *DispatchReport) error {
	now := s.now().UTC()
	requeued, skipped, err := s.store.Repositories().Steps.ReleaseStale(ctx, now.Add(-s.settings.LockTTL), now)
	if err != nil {
		return err
	}
	report.Released = requeued + skipped
	if report.Released > 0 {
		s.logger.Warn("released stale pending escalation steps",
			zap.Int("requeued", requeued),
			zap.Int("skipped", skipped))
	}
	return nil
}

// executeStep claims, sends and records one step. The returned status is
// the step's status afterwards; SKIPPED means another worker or a stop got
// there first.
func (s *EscalationService) executeStep(ctx context.Context, step *domain.EscalationStep) (domain.StepStatus, error) {
	repos := s.store.Repositories()
	claimed, err := repos.Steps.Claim(ctx, step.ID, s.now().UTC())
	if err != nil {
		return "", err
	}
	if !claimed {
		return domain.StepStatusSkipped, nil
	}
	step.Status = domain.StepStatusPending

	log := observability.WithCorrelation(s.logger, step.ID)
	externalID, sendErr := s.notifier.SendStep(ctx, step)
	now := s.now().UTC()
	if sendErr == nil {
		return s.recordSent(ctx, step, externalID, now, log)
	}
	return s.recordFailure(ctx, step, sendErr, now, log)
}

func (s *EscalationService) recordSent(ctx context.Context, step *domain.EscalationStep, externalID string, now time.Time, log *zap.Logger) (domain.StepStatus, error) {
	step.Status = domain.StepStatusSent
	step.SentAt = &now
	step.UpdatedAt = now
	if externalID != "" {
		step.ExternalID = &externalID
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Steps.Update(ctx, step); err != nil {
			return err
		}
		if err := repos.Tickets.RecordEscalation(ctx, step.TicketID, step.StepNumber, now); err != nil {
			return err
		}
		return repos.Activities.Create(ctx, &domain.Activity{
			TicketID:    &step.TicketID,
			Type:        domain.ActivityEscalationStepExecuted,
			Actor:       domain.ActorDispatcher,
			Description: "Escalation step sent to " + step.ContactName,
			Details: map[string]any{
				"step_id":     step.ID,
				"step_number": step.StepNumber,
				"channel":     step.Channel,
				"recipient":   step.Recipient,
				"external_id": externalID,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return "", err
	}
	log.Info("escalation step sent",
		zap.String("ticket_id", step.TicketID),
		zap.Int("step_number", step.StepNumber),
		zap.String("channel", string(step.Channel)))
	s.metrics.RecordEscalation(ctx, step.Channel, step.Status)
	s.publishEvent(ctx, events.Event{
		Type:          events.EventEscalationStepSent,
		TicketID:      step.TicketID,
		CorrelationID: step.ID,
		Payload:       stepPayload(step, ""),
	})
	return step.Status, nil
}

func (s *EscalationService) recordFailure(ctx context.Context, step *domain.EscalationStep, sendErr error, now time.Time, log *zap.Logger) (domain.StepStatus, error) {
	step.RegisterFailure(sendErr, errorutil.IsRetryable(sendErr), now.Add(s.settings.RetryBackoff), now)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Steps.Update(ctx, step); err != nil {
			return err
		}
		return repos.Activities.Create(ctx, &domain.Activity{
			TicketID:    &step.TicketID,
			Type:        domain.ActivityEscalationStepFailed,
			Actor:       domain.ActorDispatcher,
			Description: "Escalation step to " + step.ContactName + " failed",
			Details: map[string]any{
				"step_id":     step.ID,
				"step_number": step.StepNumber,
				"channel":     step.Channel,
				"retry_count": step.RetryCount,
				"max_retries": step.MaxRetries,
				"status":      step.Status,
				"error":       sendErr.Error(),
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return "", err
	}
	log.Warn("escalation step failed",
		zap.String("ticket_id", step.TicketID),
		zap.Int("step_number", step.StepNumber),
		zap.String("status", string(step.Status)),
		zap.Int("retry_count", step.RetryCount),
		zap.Error(sendErr))
	s.metrics.RecordEscalation(ctx, step.Channel, step.Status)
	s.publishEvent(ctx, events.Event{
		Type:          events.EventEscalationStepFailed,
		TicketID:      step.TicketID,
		CorrelationID: step.ID,
		Payload:       stepPayload(step, sendErr.Error()),
	})
	return step.Status, nil
}

func (s *EscalationService) publishStarted(ctx context.Context, ticket *domain.Ticket, steps []domain.EscalationStep) {
	contacts := 0
	for _, step := range steps {
		if step.StepNumber > contacts {
			contacts = step.StepNumber
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventEscalationStarted,
		TicketID: ticket.ID,
		Payload:  events.EscalationStartedPayload{Steps: len(steps), Contacts: contacts},
	})
}

func (s *EscalationService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.now, event)
}

func stepPayload(step *domain.EscalationStep, errText string) events.EscalationStepPayload {
	return events.EscalationStepPayload{
		StepID:     step.ID,
		StepNumber: step.StepNumber,
		Channel:    step.Channel,
		Status:     step.Status,
		RetryCount: step.RetryCount,
		Error:      errText,
	}
}

func getTicket(ctx context.Context, repos repository.Repositories, ticketID string) (*domain.Ticket, error) {
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return ticket, err
}
