package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

type escalationStepRepository struct {
	db DBTX
}

// NewEscalationStepRepository builds repository.
func NewEscalationStepRepository(db DBTX) EscalationStepRepository {
	return &escalationStepRepository{db: db}
}

const stepColumns = `s.id, s.ticket_id, s.step_number, s.channel, s.contact_name, s.contact_role, s.recipient,
               s.subject, s.body, s.status, s.scheduled_at, s.sent_at, s.retry_count, s.max_retries,
               s.last_error, s.external_id, s.created_at, s.updated_at`

func (r *escalationStepRepository) CreateBatch(ctx context.Context, steps []domain.EscalationStep) error {
	const query = `
        INSERT INTO escalation_steps (ticket_id, step_number, channel, contact_name, contact_role, recipient,
            subject, body, status, scheduled_at, retry_count, max_retries, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
        RETURNING id`
	for i := range steps {
		step := &steps[i]
		if err := r.db.QueryRow(ctx, query,
			step.TicketID,
			step.StepNumber,
			step.Channel,
			step.ContactName,
			step.ContactRole,
			step.Recipient,
			step.Subject,
			step.Body,
			step.Status,
			step.ScheduledAt,
			step.RetryCount,
			step.MaxRetries,
			step.CreatedAt,
		).Scan(&step.ID); err != nil {
			return err
		}
		step.UpdatedAt = step.CreatedAt
	}
	return nil
}

func (r *escalationStepRepository) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM escalation_steps WHERE ticket_id=$1`, ticketID).Scan(&count)
	return count, err
}

func (r *escalationStepRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationStep, error) {
	query := `SELECT ` + stepColumns + ` FROM escalation_steps s WHERE s.ticket_id=$1
        ORDER BY s.step_number ASC, s.channel ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return scanSteps(rows)
}

func (r *escalationStepRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.EscalationStep, error) {
	query := `SELECT ` + stepColumns + `
        FROM escalation_steps s
        JOIN tickets t ON t.id = s.ticket_id
        WHERE s.status='SCHEDULED' AND s.scheduled_at <= $1 AND t.escalation_stopped = FALSE
        ORDER BY s.scheduled_at ASC, s.step_number ASC, s.channel ASC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	return scanSteps(rows)
}

func (r *escalationStepRepository) Claim(ctx context.Context, stepID string, now time.Time) (bool, error) {
	const query = `
        UPDATE escalation_steps s SET status='PENDING', updated_at=$2
        FROM tickets t
        WHERE s.id=$1 AND s.status='SCHEDULED' AND t.id = s.ticket_id AND t.escalation_stopped = FALSE`
	cmd, err := r.db.Exec(ctx, query, stepID, now)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *escalationStepRepository) Update(ctx context.Context, step *domain.EscalationStep) error {
	const query = `
        UPDATE escalation_steps SET status=$1, scheduled_at=$2, sent_at=$3, retry_count=$4, last_error=$5,
            external_id=$6, updated_at=$7
        WHERE id=$8`
	cmd, err := r.db.Exec(ctx, query,
		step.Status,
		step.ScheduledAt,
		step.SentAt,
		step.RetryCount,
		step.LastError,
		step.ExternalID,
		step.UpdatedAt,
		step.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *escalationStepRepository) SkipScheduled(ctx context.Context, ticketID string, at time.Time) (int, error) {
	const query = `
        UPDATE escalation_steps SET status='SKIPPED', updated_at=$2
        WHERE ticket_id=$1 AND status='SCHEDULED'`
	cmd, err := r.db.Exec(ctx, query, ticketID, at)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *escalationStepRepository) ReleaseStale(ctx context.Context, staleBefore, now time.Time) (int, int, error) {
	const query = `
        UPDATE escalation_steps s
        SET status = CASE WHEN t.escalation_stopped THEN 'SKIPPED' ELSE 'SCHEDULED' END,
            scheduled_at = CASE WHEN t.escalation_stopped THEN s.scheduled_at ELSE $2 END,
            updated_at = $2
        FROM tickets t
        WHERE t.id = s.ticket_id AND s.status='PENDING' AND s.updated_at < $1
        RETURNING s.status`
	rows, err := r.db.Query(ctx, query, staleBefore, now)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	var requeued, skipped int
	for rows.Next() {
		var status domain.StepStatus
		if err := rows.Scan(&status); err != nil {
			return 0, 0, err
		}
		if status == domain.StepStatusSkipped {
			skipped++
		} else {
			requeued++
		}
	}
	return requeued, skipped, rows.Err()
}

func scanSteps(rows pgx.Rows) ([]domain.EscalationStep, error) {
	defer rows.Close()

	var result []domain.EscalationStep
	for rows.Next() {
		var step domain.EscalationStep
		if err := rows.Scan(
			&step.ID,
			&step.TicketID,
			&step.StepNumber,
			&step.Channel,
			&step.ContactName,
			&step.ContactRole,
			&step.Recipient,
			&step.Subject,
			&step.Body,
			&step.Status,
			&step.ScheduledAt,
			&step.SentAt,
			&step.RetryCount,
			&step.MaxRetries,
			&step.LastError,
			&step.ExternalID,
			&step.CreatedAt,
			&step.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, step)
	}
	return result, rows.Err()
}
