package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errorutil.ErrNotFound

// MessageRepository stores intake idempotency records.
type MessageRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*domain.Message, error)
	// CreateIfAbsent inserts the record unless the external id already
	// exists; created reports which happened.
	CreateIfAbsent(ctx context.Context, msg *domain.Message) (created bool, err error)
	Update(ctx context.Context, msg *domain.Message) error
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	GetByMessageID(ctx context.Context, messageID string) (*domain.Ticket, error)
	// NextSequence consumes the next ticket number for the UTC day. It must
	// run in the same transaction as the insert that uses it.
	NextSequence(ctx context.Context, day time.Time) (int, error)
	RecordEscalation(ctx context.Context, ticketID string, stepNumber int, at time.Time) error
	// StopEscalation reports false when the ticket was already stopped.
	StopEscalation(ctx context.Context, ticketID, reason string, at time.Time) (bool, error)
}

// EscalationStepRepository stores planned notifications.
type EscalationStepRepository interface {
	CreateBatch(ctx context.Context, steps []domain.EscalationStep) error
	CountByTicket(ctx context.Context, ticketID string) (int, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationStep, error)
	// ListDue returns SCHEDULED steps due at now whose ticket is not stopped,
	// earliest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.EscalationStep, error)
	// Claim moves a step from SCHEDULED to PENDING if it is still scheduled
	// and its ticket is not stopped.
	Claim(ctx context.Context, stepID string, now time.Time) (bool, error)
	Update(ctx context.Context, step *domain.EscalationStep) error
	SkipScheduled(ctx context.Context, ticketID string, at time.Time) (int, error)
	// ReleaseStale returns PENDING steps last touched before staleBefore to
	// SCHEDULED, due at now. Steps of stopped tickets become SKIPPED instead.
	ReleaseStale(ctx context.Context, staleBefore, now time.Time) (requeued, skipped int, err error)
}

// ActivityRepository is the append-only audit log.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.Activity) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Activity, error)
}

// Repositories groups the repositories that share one connection or transaction.
type Repositories struct {
	Messages   MessageRepository
	Tickets    TicketRepository
	Steps      EscalationStepRepository
	Activities ActivityRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
