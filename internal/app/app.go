package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/aviation-mailbot/internal/api/http"
	"github.com/spec-kit/aviation-mailbot/internal/api/http/handlers"
	"github.com/spec-kit/aviation-mailbot/internal/classifier"
	"github.com/spec-kit/aviation-mailbot/internal/config"
	"github.com/spec-kit/aviation-mailbot/internal/connector"
	"github.com/spec-kit/aviation-mailbot/internal/contacts"
	"github.com/spec-kit/aviation-mailbot/internal/events"
	"github.com/spec-kit/aviation-mailbot/internal/observability"
	"github.com/spec-kit/aviation-mailbot/internal/persistence"
	"github.com/spec-kit/aviation-mailbot/internal/repository"
	"github.com/spec-kit/aviation-mailbot/internal/service"
	"github.com/spec-kit/aviation-mailbot/internal/worker"
)

// App holds the wired services shared by the API and worker binaries.
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Postgres      *persistence.Postgres
	Redis         *persistence.Redis
	Store         repository.Store
	Inbox         connector.Inbox
	Rules         *classifier.FileRuleSource
	Contacts      *contacts.Directory
	Dispatcher    events.Dispatcher
	Relay         *events.NATSRelay
	Notifications *service.NotificationService
	Tickets       *service.TicketService
	Escalations   *service.EscalationService
	Intake        *service.IntakeService
}

// New connects backing stores and wires every service. Backends without
// configuration fall back to their in-process implementations.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*App, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	rules, err := classifier.NewFileRuleSource(cfg.Classifier.RulesFile)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("load classifier rules: %w", err)
	}
	directory, err := contacts.NewDirectory(contacts.Options{
		Path:            cfg.Escalation.ContactsFile,
		InternalEmails:  cfg.Escalation.InternalEmails,
		InternalNumbers: cfg.Escalation.InternalNumbers,
		Logger:          logger,
	})
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("load contacts: %w", err)
	}

	redis := persistence.NewRedis(cfg.Redis, logger)

	var relay *events.NATSRelay
	if cfg.NATS.URL != "" {
		relay, err = events.ConnectNATS(cfg.NATS, logger)
		if err != nil {
			logger.Warn("event relay disabled", zap.Error(err))
			relay = nil
		}
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Postgres:   pg,
		Redis:      redis,
		Store:      pg.Store(),
		Inbox:      redis.Inbox(cfg.Redis.KeyPrefix),
		Rules:      rules,
		Contacts:   directory,
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Relay:      relay,
	}
	a.wire()
	return a, nil
}

func (a *App) wire() {
	cfg := a.Config
	locker := a.Redis.Locker(cfg.Redis.KeyPrefix, a.Logger)
	sender := connector.NewLogSender(cfg.Notification.EmailFrom, a.Logger)

	a.Notifications = service.NewNotificationService(sender, a.Dispatcher, a.Logger, cfg.Notification, cfg.Escalation.CompanyName)
	a.Tickets = service.NewTicketService(service.TicketDependencies{
		Store:      a.Store,
		Dispatcher: a.Dispatcher,
		Logger:     a.Logger,
	})
	a.Escalations = service.NewEscalationService(service.EscalationDependencies{
		Store:      a.Store,
		Contacts:   a.Contacts,
		Planner:    service.NewEscalationPlanner(service.PlannerConfigFrom(cfg.Escalation)),
		Notifier:   a.Notifications,
		Locker:     locker,
		Dispatcher: a.Dispatcher,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
		Settings: service.EscalationSettings{
			RetryBackoff: cfg.Escalation.RetryBackoff(),
			BatchSize:    cfg.Escalation.BatchSize,
			Pause:        cfg.Escalation.DispatchPause(),
			LockTTL:      cfg.Redis.LockTTL(),
		},
	})

	gate := classifier.DefaultGate()
	gate.SecondaryThreshold = cfg.Classifier.SecondaryThreshold
	gate.GenericThreshold = cfg.Classifier.GenericThreshold

	a.Intake = service.NewIntakeService(service.IntakeDependencies{
		Store:       a.Store,
		Source:      a.Inbox,
		Classifier:  classifier.NewEngine(a.Rules),
		Gate:        gate,
		Tickets:     a.Tickets,
		Escalations: a.Escalations,
		Notifier:    a.Notifications,
		Locker:      locker,
		Dispatcher:  a.Dispatcher,
		Metrics:     a.Metrics,
		Logger:      a.Logger,
		Settings: service.IntakeSettings{
			Mailboxes:              cfg.Mail.Mailboxes,
			FetchLimit:             cfg.Mail.FetchLimit,
			MaxConcurrentMailboxes: cfg.Mail.MaxConcurrentMailboxes,
			SubjectMaxLength:       cfg.Mail.SubjectMaxLength,
			BodyMaxLength:          cfg.Mail.BodyMaxLength,
			LockTTL:                cfg.Redis.LockTTL(),
		},
	})

	worker.StartNotificationWorker(a.Notifications, a.Dispatcher, a.Relay)
}

// Scheduler returns the poll and dispatch loops at their configured periods.
func (a *App) Scheduler() *worker.Scheduler {
	s := worker.NewScheduler(a.Logger)
	s.Every("mail-poll", a.Config.Mail.PollInterval(), worker.PollJob(a.Intake))
	s.Every("escalation-dispatch", a.Config.Escalation.DispatchInterval(), worker.EscalationJob(a.Escalations))
	return s
}

// HTTP builds the fiber application with middleware and routes.
func (a *App) HTTP() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               a.Config.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, a.Logger, a.Metrics, a.Config.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(a.Config.App.Name, a.Config.App.Version, a.Postgres, a.Redis),
		Intake:  handlers.NewIntakeHandler(a.Intake, a.Inbox),
		Tickets: handlers.NewTicketsHandler(a.Tickets, a.Escalations),
		Jobs:    handlers.NewJobsHandler(a.Intake, a.Escalations),
		Config: handlers.NewConfigHandler(map[string]handlers.Reloader{
			"classifier_rules": a.Rules,
			"contacts":         a.Contacts,
		}),
	})
	return server
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	if a.Relay != nil {
		a.Relay.Close()
	}
	a.Redis.Close()
	a.Postgres.Close()
}
