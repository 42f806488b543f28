package repository

import (
	"context"
	"time"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, ticket_number, message_id, title, description, category, priority, status,
               customer_email, customer_name, customer_phone, aircraft_registration,
               response_due_at, resolution_due_at, escalation_level, last_escalated_at,
               escalation_stopped, escalation_stop_reason, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, message_id, title, description, category, priority, status,
            customer_email, customer_name, customer_phone, aircraft_registration,
            response_due_at, resolution_due_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
        RETURNING id, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Number,
		ticket.MessageID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.CustomerEmail,
		ticket.CustomerName,
		ticket.CustomerPhone,
		ticket.AircraftRegistration,
		ticket.ResponseDueAt,
		ticket.ResolutionDueAt,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number=$1`, number)
}

func (r *ticketRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE message_id=$1`, messageID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.MessageID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CustomerEmail,
		&ticket.CustomerName,
		&ticket.CustomerPhone,
		&ticket.AircraftRegistration,
		&ticket.ResponseDueAt,
		&ticket.ResolutionDueAt,
		&ticket.EscalationLevel,
		&ticket.LastEscalatedAt,
		&ticket.EscalationStopped,
		&ticket.EscalationStopReason,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &ticket, nil
}

// NextSequence holds the counter row lock until the surrounding
// transaction ends, so concurrent creators on the same day queue up.
func (r *ticketRepository) NextSequence(ctx context.Context, day time.Time) (int, error) {
	const query = `
        INSERT INTO ticket_counters (day, last_seq) VALUES ($1, 1)
        ON CONFLICT (day) DO UPDATE SET last_seq = ticket_counters.last_seq + 1
        RETURNING last_seq`
	var seq int
	if err := r.db.QueryRow(ctx, query, domain.TicketDay(day)).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *ticketRepository) RecordEscalation(ctx context.Context, ticketID string, stepNumber int, at time.Time) error {
	const query = `
        UPDATE tickets SET escalation_level = GREATEST(escalation_level, $2), last_escalated_at=$3, updated_at=$3
        WHERE id=$1`
	cmd, err := r.db.Exec(ctx, query, ticketID, stepNumber, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) StopEscalation(ctx context.Context, ticketID, reason string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET escalation_stopped=TRUE, escalation_stop_reason=$2, updated_at=$3
        WHERE id=$1 AND escalation_stopped=FALSE`
	cmd, err := r.db.Exec(ctx, query, ticketID, reason, at)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, ticketID); err != nil {
		return false, err
	}
	return false, nil
}
