package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/aviation-mailbot/internal/classifier"
	"github.com/spec-kit/aviation-mailbot/internal/connector"
	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/internal/events"
	"github.com/spec-kit/aviation-mailbot/internal/lock"
	"github.com/spec-kit/aviation-mailbot/internal/observability"
	"github.com/spec-kit/aviation-mailbot/internal/repository"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
	"github.com/spec-kit/aviation-mailbot/pkg/util/textutil"
)

// OutcomeStatus is the result of pushing one message through intake.
type OutcomeStatus string

const (
	OutcomeProcessed OutcomeStatus = "processed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

const (
	ReasonAlreadyProcessed = "already_processed"
	ReasonInProgress       = "in_progress"
)

// Outcome reports what happened to a message.
type Outcome struct {
	ExternalID     string                 `json:"external_id"`
	Status         OutcomeStatus          `json:"status"`
	Reason         string                 `json:"reason,omitempty"`
	MessageID      string                 `json:"message_id,omitempty"`
	TicketID       string                 `json:"ticket_id,omitempty"`
	TicketNumber   string                 `json:"ticket_number,omitempty"`
	Classification *domain.Classification `json:"-"`
}

// MailboxReport counts the outcomes of one mailbox poll.
type MailboxReport struct {
	Mailbox   string `json:"mailbox"`
	Fetched   int    `json:"fetched"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

func (r *MailboxReport) add(o Outcome) {
	switch o.Status {
	case OutcomeProcessed:
		r.Processed++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Classifier scores a message.
type Classifier interface {
	Classify(in classifier.Input) (domain.Classification, error)
}

// IntakeSettings bounds polling and input normalisation.
type IntakeSettings struct {
	Mailboxes              []string
	FetchLimit             int
	MaxConcurrentMailboxes int
	SubjectMaxLength       int
	BodyMaxLength          int
	LockTTL                time.Duration
}

// IntakeDependencies bundles collaborators for the intake service.
type IntakeDependencies struct {
	Store       repository.Store
	Source      connector.MailSource
	Classifier  Classifier
	Gate        classifier.Gate
	Tickets     *TicketService
	Escalations *EscalationService
	Notifier    *NotificationService
	Locker      lock.Locker
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Settings    IntakeSettings
	Clock       func() time.Time
}

// IntakeService drives each inbound message through the processing state
// machine. Every transition is persisted before the next side effect, and
// an external id reaches at most one terminal outcome.
type IntakeService struct {
	store       repository.Store
	source      connector.MailSource
	classifier  Classifier
	gate        classifier.Gate
	tickets     *TicketService
	escalations *EscalationService
	notifier    *NotificationService
	locker      lock.Locker
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	settings    IntakeSettings
	now         func() time.Time
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	s := &IntakeService{
		store:       deps.Store,
		source:      deps.Source,
		classifier:  deps.Classifier,
		gate:        deps.Gate,
		tickets:     deps.Tickets,
		escalations: deps.Escalations,
		notifier:    deps.Notifier,
		locker:      deps.Locker,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		settings:    deps.Settings,
		now:         deps.Clock,
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
	if s.settings.LockTTL <= 0 {
		s.settings.LockTTL = 2 * time.Minute
	}
	if s.settings.FetchLimit <= 0 {
		s.settings.FetchLimit = 50
	}
	if s.settings.MaxConcurrentMailboxes <= 0 {
		s.settings.MaxConcurrentMailboxes = 1
	}
	return s
}

// ProcessMessage runs one message through intake. The returned error is
// reserved for failures that prevented an outcome from being recorded; a
// message that fails inside the pipeline comes back as OutcomeFailed.
func (s *IntakeService) ProcessMessage(ctx context.Context, in domain.InboundMessage) (Outcome, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ExternalID == "" {
		return Outcome{Status: OutcomeFailed, Reason: "missing external id"},
			errorutil.NewValidationError("external_id is required", nil)
	}
	release, ok, err := s.locker.Acquire(ctx, "message:"+in.ExternalID, s.settings.LockTTL)
	if err != nil {
		return Outcome{ExternalID: in.ExternalID, Status: OutcomeFailed, Reason: err.Error()}, err
	}
	if !ok {
		return Outcome{ExternalID: in.ExternalID, Status: OutcomeSkipped, Reason: ReasonInProgress}, nil
	}
	defer release()

	msg, err := s.openRecord(ctx, in)
	if err != nil {
		return Outcome{ExternalID: in.ExternalID, Status: OutcomeFailed, Reason: err.Error()}, err
	}
	log := observability.WithCorrelation(s.logger, msg.ID).With(zap.String("external_id", msg.ExternalID))

	if msg.State.IsTerminal() {
		log.Debug("message already processed", zap.String("state", string(msg.State)))
		s.markRead(ctx, in, log)
		s.metrics.RecordIntake(ctx, in.Mailbox, string(OutcomeSkipped))
		outcome := Outcome{ExternalID: msg.ExternalID, Status: OutcomeSkipped, Reason: ReasonAlreadyProcessed, MessageID: msg.ID}
		if msg.TicketID != nil {
			outcome.TicketID = *msg.TicketID
		}
		return outcome, nil
	}

	outcome, err := s.run(ctx, msg, in, log)
	if err != nil {
		outcome, err = s.fail(ctx, msg, in, err, log)
	}
	s.metrics.RecordIntake(ctx, in.Mailbox, string(outcome.Status))
	return outcome, err
}

// openRecord returns the idempotency record for the message, creating it in
// RECEIVED when this is the first sighting.
func (s *IntakeService) openRecord(ctx context.Context, in domain.InboundMessage) (*domain.Message, error) {
	repos := s.store.Repositories()
	msg, err := repos.Messages.GetByExternalID(ctx, in.ExternalID)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	msg = &domain.Message{
		ExternalID:          in.ExternalID,
		Mailbox:             in.Mailbox,
		Sender:              strings.ToLower(strings.TrimSpace(in.SenderAddress)),
		Subject:             textutil.Sanitize(in.Subject, s.settings.SubjectMaxLength),
		Fingerprint:         domain.Fingerprint(in.Subject, in.Body),
		State:               domain.StateReceived,
		ProcessingStartedAt: &now,
		CreatedAt:           now,
	}
	created := false
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		created, err = repos.Messages.CreateIfAbsent(ctx, msg)
		if err != nil || !created {
			return err
		}
		return repos.Activities.Create(ctx, &domain.Activity{
			MessageID:   &msg.ID,
			Type:        domain.ActivityMessageReceived,
			Actor:       domain.ActorSystem,
			Description: "Message received from " + msg.Sender,
			Details: map[string]any{
				"external_id": msg.ExternalID,
				"mailbox":     msg.Mailbox,
				"fingerprint": msg.Fingerprint,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return repos.Messages.GetByExternalID(ctx, in.ExternalID)
	}
	return msg, nil
}

func (s *IntakeService) run(ctx context.Context, msg *domain.Message, in domain.InboundMessage, log *zap.Logger) (Outcome, error) {
	ticket, err := s.existingTicket(ctx, msg)
	if err != nil {
		return Outcome{}, err
	}
	if ticket != nil {
		log.Info("resuming message after ticket creation",
			zap.String("state", string(msg.State)),
			zap.String("ticket", ticket.Number))
		return s.complete(ctx, msg, ticket, in, nil, log)
	}

	if err := s.advance(ctx, msg, domain.StateParsing); err != nil {
		return Outcome{}, err
	}
	subject := textutil.CleanSubject(in.Subject, s.settings.SubjectMaxLength)
	body := textutil.Sanitize(in.Body, s.settings.BodyMaxLength)
	sender := strings.ToLower(strings.TrimSpace(in.SenderAddress))
	if err := connector.ValidateRecipient(domain.ChannelEmail, sender); err != nil {
		return Outcome{}, err
	}

	if err := s.advance(ctx, msg, domain.StateClassifying); err != nil {
		return Outcome{}, err
	}
	c, err := s.classifier.Classify(classifier.Input{
		Subject:        subject,
		Body:           body,
		Sender:         sender,
		HasAttachments: in.HasAttachments,
	})
	if err != nil {
		return Outcome{}, err
	}
	log.Info("message classified",
		zap.String("category", string(c.Category)),
		zap.String("priority", string(c.Priority)),
		zap.Float64("confidence", c.Confidence),
		zap.String("rule", c.RuleName))

	accepted, reason := s.gate.IsServiceRequest(c)
	if !accepted {
		return s.skip(ctx, msg, in, reason, c, log)
	}

	if err := s.advance(ctx, msg, domain.StateCreatingTicket); err != nil {
		return Outcome{}, err
	}
	input := TicketCreateInput{
		MessageID:      &msg.ID,
		Title:          subject,
		Description:    body,
		CustomerEmail:  sender,
		CustomerName:   customerName(in.SenderName, sender),
		Classification: c,
	}
	if phone, ok := textutil.ExtractPhone(body); ok {
		input.CustomerPhone = &phone
	}

	next := *msg
	var planned []domain.EscalationStep
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		created, err := s.tickets.CreateInTx(ctx, repos, input)
		if err != nil {
			return err
		}
		ticket = created
		planned, err = s.escalations.PlanInTx(ctx, repos, ticket)
		if err != nil {
			if errorutil.KindOf(err) != errorutil.KindConfiguration {
				return err
			}
			// The ticket stands without steps; an operator can start
			// escalation once contacts are fixed.
			if err := repos.Activities.Create(ctx, &domain.Activity{
				TicketID:    &ticket.ID,
				MessageID:   &msg.ID,
				Type:        domain.ActivitySystemError,
				Actor:       domain.ActorSystem,
				Description: "Escalation not planned: " + err.Error(),
				Details:     map[string]any{"error": err.Error()},
				CreatedAt:   s.now().UTC(),
			}); err != nil {
				return err
			}
		}
		next.TicketID = &ticket.ID
		if err := next.Transition(domain.StateSendingConfirmation, s.now().UTC()); err != nil {
			return err
		}
		return repos.Messages.Update(ctx, &next)
	})
	if err != nil {
		return Outcome{}, err
	}
	*msg = next

	log.Info("ticket created",
		zap.String("ticket", ticket.Number),
		zap.Int("escalation_steps", len(planned)))
	s.metrics.RecordTicketCreated(ctx, ticket.Category, ticket.Priority)
	publish(ctx, s.dispatcher, s.now, ticketCreatedEvent(ticket, c))
	if len(planned) > 0 {
		s.escalations.publishStarted(ctx, ticket, planned)
	}
	return s.complete(ctx, msg, ticket, in, &c, log)
}

// complete runs the stages after the ticket exists: confirmation, then
// escalation hand-off, then COMPLETED. It is also the resume entry point.
func (s *IntakeService) complete(ctx context.Context, msg *domain.Message, ticket *domain.Ticket, in domain.InboundMessage, c *domain.Classification, log *zap.Logger) (Outcome, error) {
	if msg.State == domain.StateCreatingTicket {
		// The ticket committed under an earlier run but the record lags.
		msg.TicketID = &ticket.ID
		if err := s.advance(ctx, msg, domain.StateSendingConfirmation); err != nil {
			return Outcome{}, err
		}
	}
	if msg.State == domain.StateSendingConfirmation {
		s.sendConfirmation(ctx, msg, ticket, log)
		if err := s.advance(ctx, msg, domain.StateSchedulingEscalation); err != nil {
			return Outcome{}, err
		}
	}
	s.markRead(ctx, in, log)
	if err := s.advance(ctx, msg, domain.StateCompleted); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		ExternalID:     msg.ExternalID,
		Status:         OutcomeProcessed,
		MessageID:      msg.ID,
		TicketID:       ticket.ID,
		TicketNumber:   ticket.Number,
		Classification: c,
	}, nil
}

func (s *IntakeService) existingTicket(ctx context.Context, msg *domain.Message) (*domain.Ticket, error) {
	if msg.State == domain.StateReceived {
		return nil, nil
	}
	ticket, err := s.store.Repositories().Tickets.GetByMessageID(ctx, msg.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return ticket, err
}

func (s *IntakeService) sendConfirmation(ctx context.Context, msg *domain.Message, ticket *domain.Ticket, log *zap.Logger) {
	if s.notifier == nil || !s.notifier.ConfirmationEnabled() || ticket.CustomerEmail == "" {
		return
	}
	activity := &domain.Activity{
		TicketID:  &ticket.ID,
		MessageID: &msg.ID,
		Actor:     domain.ActorSystem,
		CreatedAt: s.now().UTC(),
	}
	externalID, err := s.notifier.SendConfirmation(ctx, ticket)
	if err != nil {
		log.Warn("confirmation email failed", zap.String("ticket", ticket.Number), zap.Error(err))
		activity.Type = domain.ActivityConfirmationFailed
		activity.Description = "Confirmation to " + ticket.CustomerEmail + " failed"
		activity.Details = map[string]any{"error": err.Error()}
	} else {
		activity.Type = domain.ActivityConfirmationSent
		activity.Description = "Confirmation sent to " + ticket.CustomerEmail
		activity.Details = map[string]any{"external_id": externalID}
	}
	if err := s.store.Repositories().Activities.Create(ctx, activity); err != nil {
		log.Error("failed to record confirmation activity", zap.Error(err))
	}
}

func (s *IntakeService) skip(ctx context.Context, msg *domain.Message, in domain.InboundMessage, reason string, c domain.Classification, log *zap.Logger) (Outcome, error) {
	now := s.now().UTC()
	next := *msg
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := next.Transition(domain.StateSkipped, now); err != nil {
			return err
		}
		next.StatusReason = reason
		if err := repos.Messages.Update(ctx, &next); err != nil {
			return err
		}
		return repos.Activities.Create(ctx, &domain.Activity{
			MessageID:   &msg.ID,
			Type:        domain.ActivityMessageSkipped,
			Actor:       domain.ActorClassifier,
			Description: "Message skipped: " + reason,
			Details: map[string]any{
				"reason":     reason,
				"category":   c.Category,
				"priority":   c.Priority,
				"confidence": c.Confidence,
				"reasoning":  c.Reasoning,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return Outcome{}, err
	}
	*msg = next
	log.Info("message skipped", zap.String("reason", reason), zap.String("category", string(c.Category)))
	publish(ctx, s.dispatcher, s.now, events.Event{
		Type:      events.EventMessageSkipped,
		MessageID: msg.ID,
		Payload:   events.MessageOutcomePayload{ExternalID: msg.ExternalID, Reason: reason},
	})
	s.markRead(ctx, in, log)
	return Outcome{
		ExternalID:     msg.ExternalID,
		Status:         OutcomeSkipped,
		Reason:         reason,
		MessageID:      msg.ID,
		Classification: &c,
	}, nil
}

// fail records the error on the message and moves it to FAILED. The
// returned error is non-nil only if the failure itself could not be stored.
func (s *IntakeService) fail(ctx context.Context, msg *domain.Message, in domain.InboundMessage, cause error, log *zap.Logger) (Outcome, error) {
	now := s.now().UTC()
	msg.Fail(cause, now)
	msg.StatusReason = string(errorutil.KindOf(cause))
	outcome := Outcome{ExternalID: msg.ExternalID, Status: OutcomeFailed, Reason: cause.Error(), MessageID: msg.ID}
	if msg.TicketID != nil {
		outcome.TicketID = *msg.TicketID
	}

	log.Error("message processing failed", zap.Error(cause))
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Messages.Update(ctx, msg); err != nil {
			return err
		}
		return repos.Activities.Create(ctx, &domain.Activity{
			TicketID:    msg.TicketID,
			MessageID:   &msg.ID,
			Type:        domain.ActivityMessageFailed,
			Actor:       domain.ActorSystem,
			Description: "Message processing failed: " + cause.Error(),
			Details: map[string]any{
				"error":       cause.Error(),
				"kind":        errorutil.KindOf(cause),
				"error_count": msg.ErrorCount,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		log.Error("failed to record message failure", zap.Error(err))
		return outcome, err
	}
	publish(ctx, s.dispatcher, s.now, events.Event{
		Type:      events.EventMessageFailed,
		MessageID: msg.ID,
		Payload:   events.MessageOutcomePayload{ExternalID: msg.ExternalID, Reason: cause.Error()},
	})
	s.markRead(ctx, in, log)
	return outcome, nil
}

func (s *IntakeService) advance(ctx context.Context, msg *domain.Message, to domain.ProcessingState) error {
	next := *msg
	if err := next.Transition(to, s.now().UTC()); err != nil {
		return errorutil.NewInternalError(err)
	}
	if err := s.store.Repositories().Messages.Update(ctx, &next); err != nil {
		return err
	}
	*msg = next
	return nil
}

func (s *IntakeService) markRead(ctx context.Context, in domain.InboundMessage, log *zap.Logger) {
	if s.source == nil || in.Mailbox == "" {
		return
	}
	if err := s.source.MarkRead(ctx, in.Mailbox, in.ExternalID); err != nil {
		log.Warn("failed to mark message read", zap.String("mailbox", in.Mailbox), zap.Error(err))
	}
}

// ProcessMailbox fetches unread mail and processes it sequentially. One
// message failing never stops the rest of the batch.
func (s *IntakeService) ProcessMailbox(ctx context.Context, mailbox string) (MailboxReport, error) {
	report := MailboxReport{Mailbox: mailbox}
	if s.source == nil {
		return report, errorutil.NewConfigurationError("no mail source configured", nil)
	}
	messages, err := s.source.FetchUnread(ctx, mailbox, s.settings.FetchLimit)
	if err != nil {
		return report, errorutil.NewTransientError("fetch unread from "+mailbox, err)
	}
	report.Fetched = len(messages)
	for _, in := range messages {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if in.Mailbox == "" {
			in.Mailbox = mailbox
		}
		outcome, err := s.ProcessMessage(ctx, in)
		if err != nil {
			s.logger.Error("message intake error",
				zap.String("mailbox", mailbox),
				zap.String("external_id", in.ExternalID),
				zap.Error(err))
		}
		report.add(outcome)
	}
	if report.Fetched > 0 {
		s.logger.Info("mailbox processed",
			zap.String("mailbox", mailbox),
			zap.Int("fetched", report.Fetched),
			zap.Int("processed", report.Processed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

// ProcessAllMailboxes polls every configured mailbox, several at a time.
// A mailbox that cannot be fetched is reported and does not affect others.
func (s *IntakeService) ProcessAllMailboxes(ctx context.Context) ([]MailboxReport, error) {
	reports := make([]MailboxReport, len(s.settings.Mailboxes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.MaxConcurrentMailboxes)
	for i, mailbox := range s.settings.Mailboxes {
		i, mailbox := i, mailbox
		g.Go(func() error {
			report, err := s.ProcessMailbox(gctx, mailbox)
			if err != nil {
				report.Error = err.Error()
				s.logger.Error("mailbox poll failed", zap.String("mailbox", mailbox), zap.Error(err))
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()
	return reports, ctx.Err()
}

func customerName(name, address string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if at := strings.IndexByte(address, '@'); at > 0 {
		return address[:at]
	}
	return address
}
