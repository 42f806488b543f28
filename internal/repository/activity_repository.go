package repository

import (
	"context"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

type activityRepository struct {
	db DBTX
}

// NewActivityRepository builds repository.
func NewActivityRepository(db DBTX) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	const query = `
        INSERT INTO activity_log (ticket_id, message_id, activity_type, actor, description, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		activity.TicketID,
		activity.MessageID,
		activity.Type,
		activity.Actor,
		activity.Description,
		activity.Details,
		activity.CreatedAt,
	).Scan(&activity.ID)
}

func (r *activityRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Activity, error) {
	const query = `
        SELECT id, ticket_id, message_id, activity_type, actor, description, details, created_at
        FROM activity_log WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Activity
	for rows.Next() {
		var activity domain.Activity
		if err := rows.Scan(
			&activity.ID,
			&activity.TicketID,
			&activity.MessageID,
			&activity.Type,
			&activity.Actor,
			&activity.Description,
			&activity.Details,
			&activity.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, activity)
	}
	return result, rows.Err()
}
