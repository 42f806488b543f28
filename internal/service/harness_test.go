package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/aviation-mailbot/internal/classifier"
	"github.com/spec-kit/aviation-mailbot/internal/config"
	"github.com/spec-kit/aviation-mailbot/internal/connector"
	"github.com/spec-kit/aviation-mailbot/internal/contacts"
	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/internal/events"
	"github.com/spec-kit/aviation-mailbot/internal/lock"
	"github.com/spec-kit/aviation-mailbot/internal/repository/memory"
)

var baseTime = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubSender struct {
	mu   sync.Mutex
	sent []connector.Notification
	fail func(connector.Notification) error
}

func (s *stubSender) Send(_ context.Context, n connector.Notification) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		if err := s.fail(n); err != nil {
			return "", err
		}
	}
	s.sent = append(s.sent, n)
	return "ext-" + n.CorrelationID, nil
}

func (s *stubSender) setFailure(fn func(connector.Notification) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fn
}

func (s *stubSender) Sent() []connector.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]connector.Notification(nil), s.sent...)
}

type harness struct {
	store       *memory.Store
	clock       *testClock
	sender      *stubSender
	inbox       *connector.MemoryInbox
	locker      *lock.LocalLocker
	published   *eventLog
	tickets     *TicketService
	escalations *EscalationService
	intake      *IntakeService
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type harnessConfig struct {
	book      *contacts.Book
	planner   PlannerConfig
	confirm   bool
	mailboxes []string
}

type harnessOption func(*harnessConfig)

func withBook(book *contacts.Book) harnessOption {
	return func(c *harnessConfig) { c.book = book }
}

func withPlanner(p PlannerConfig) harnessOption {
	return func(c *harnessConfig) { c.planner = p }
}

func withoutConfirmation() harnessOption {
	return func(c *harnessConfig) { c.confirm = false }
}

func withMailboxes(names ...string) harnessOption {
	return func(c *harnessConfig) { c.mailboxes = names }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{
		book:      contacts.DefaultBook(),
		planner:   PlannerConfig{EmailMaxRetries: 3, SMSMaxRetries: 2, CompanyName: "Embassy Aviation"},
		confirm:   true,
		mailboxes: []string{"service"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{
		store:     memory.NewStore(),
		clock:     &testClock{now: baseTime},
		sender:    &stubSender{},
		inbox:     connector.NewMemoryInbox(),
		locker:    lock.NewLocalLocker(),
		published: &eventLog{},
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.SubscribeAll(h.published.handle)
	notifier := NewNotificationService(h.sender, dispatcher, nil,
		config.NotificationConfig{EmailFrom: "mailbot@embassy-aviation.com", SendConfirmation: cfg.confirm},
		"Embassy Aviation")

	h.tickets = NewTicketService(TicketDependencies{
		Store:      h.store,
		Dispatcher: dispatcher,
		Clock:      h.clock.Now,
	})
	h.escalations = NewEscalationService(EscalationDependencies{
		Store:      h.store,
		Contacts:   contacts.NewStaticDirectory(cfg.book, nil),
		Planner:    NewEscalationPlanner(cfg.planner),
		Notifier:   notifier,
		Locker:     h.locker,
		Dispatcher: dispatcher,
		Settings:   EscalationSettings{RetryBackoff: 5 * time.Minute, BatchSize: 100},
		Clock:      h.clock.Now,
	})
	h.intake = NewIntakeService(IntakeDependencies{
		Store:       h.store,
		Source:      h.inbox,
		Classifier:  classifier.NewEngine(classifier.NewStaticRules(classifier.DefaultRules())),
		Gate:        classifier.DefaultGate(),
		Tickets:     h.tickets,
		Escalations: h.escalations,
		Notifier:    notifier,
		Locker:      h.locker,
		Dispatcher:  dispatcher,
		Settings: IntakeSettings{
			Mailboxes:              cfg.mailboxes,
			FetchLimit:             50,
			MaxConcurrentMailboxes: 2,
			SubjectMaxLength:       200,
			BodyMaxLength:          10000,
		},
		Clock: h.clock.Now,
	})
	return h
}

// twoContactBook routes every category to two contacts with email and phone
// and has no emergency list, so resolution is exactly those two.
func twoContactBook() *contacts.Book {
	book := &contacts.Book{
		Version: 1,
		NamedContacts: map[string]contacts.Spec{
			"first":  {Name: "First Contact", Email: "first@example.com", Phone: "+15550000001", Role: "duty"},
			"second": {Name: "Second Contact", Email: "second@example.com", Phone: "+15550000002", Role: "backup"},
		},
		Categories: map[string]contacts.CategoryRouting{},
	}
	book.Global.Default = []contacts.Ref{{Name: "first"}, {Name: "second"}}
	return book
}

func emailOnlyBook(n int) *contacts.Book {
	book := &contacts.Book{
		Version:       1,
		NamedContacts: map[string]contacts.Spec{},
		Categories:    map[string]contacts.CategoryRouting{},
	}
	names := []string{"alpha", "bravo", "charlie", "delta"}
	for i := 0; i < n; i++ {
		book.NamedContacts[names[i]] = contacts.Spec{Name: names[i], Email: names[i] + "@example.com", Role: "duty"}
		book.Global.Default = append(book.Global.Default, contacts.Ref{Name: names[i]})
	}
	return book
}

func (h *harness) createTicket(t *testing.T, priority domain.Priority) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.CreateTicket(context.Background(), TicketCreateInput{
		Title:         "Left engine inspection",
		Description:   "Inspection needed before next departure.",
		CustomerEmail: "crew@charter.example",
		CustomerName:  "Crew",
		Classification: domain.Classification{
			Category:   domain.CategoryMaintenance,
			Priority:   priority,
			Confidence: 0.8,
			Reasoning:  "test",
		},
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}
