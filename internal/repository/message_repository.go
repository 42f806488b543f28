package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

type messageRepository struct {
	db DBTX
}

// NewMessageRepository builds repository.
func NewMessageRepository(db DBTX) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, external_id, mailbox, sender, subject, fingerprint, state, ticket_id, status_reason,
               error_count, last_error, processing_started_at, completed_at, created_at, updated_at`

func (r *messageRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE external_id=$1`
	var msg domain.Message
	if err := r.db.QueryRow(ctx, query, externalID).Scan(
		&msg.ID,
		&msg.ExternalID,
		&msg.Mailbox,
		&msg.Sender,
		&msg.Subject,
		&msg.Fingerprint,
		&msg.State,
		&msg.TicketID,
		&msg.StatusReason,
		&msg.ErrorCount,
		&msg.LastError,
		&msg.ProcessingStartedAt,
		&msg.CompletedAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &msg, nil
}

func (r *messageRepository) CreateIfAbsent(ctx context.Context, msg *domain.Message) (bool, error) {
	const query = `
        INSERT INTO messages (external_id, mailbox, sender, subject, fingerprint, state, status_reason,
                              processing_started_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
        ON CONFLICT (external_id) DO NOTHING
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		msg.ExternalID,
		msg.Mailbox,
		msg.Sender,
		msg.Subject,
		msg.Fingerprint,
		msg.State,
		msg.StatusReason,
		msg.ProcessingStartedAt,
		msg.CreatedAt,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *messageRepository) Update(ctx context.Context, msg *domain.Message) error {
	const query = `
        UPDATE messages SET state=$1, ticket_id=$2, status_reason=$3, error_count=$4, last_error=$5,
            processing_started_at=$6, completed_at=$7, fingerprint=$8, updated_at=$9
        WHERE id=$10`
	cmd, err := r.db.Exec(ctx, query,
		msg.State,
		msg.TicketID,
		msg.StatusReason,
		msg.ErrorCount,
		msg.LastError,
		msg.ProcessingStartedAt,
		msg.CompletedAt,
		msg.Fingerprint,
		msg.UpdatedAt,
		msg.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
