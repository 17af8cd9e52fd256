package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// HistoryRepository stores the per-field change log.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.TicketHistory, error)
	DeleteByTicket(ctx context.Context, ticketID int64) error
}

type historyRepository struct {
	db DB
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(db DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, actor_user_id, action, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorUserID,
		entry.Action,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *historyRepository) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.TicketHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, actor_user_id, action, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var entry domain.TicketHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorUserID,
			&entry.Action,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *historyRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ticket_history WHERE ticket_id=$1`, ticketID)
	return err
}
