package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CommentRepository persists ticket thread entries.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.TicketComment) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketComment, error)
	DeleteByTicket(ctx context.Context, ticketID int64) error
}

type commentRepository struct {
	db DB
}

// NewCommentRepository instantiates repository.
func NewCommentRepository(db DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.TicketComment) error {
	const query = `
        INSERT INTO ticket_comments (ticket_id, author_user_id, body, internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorUserID,
		comment.Body,
		comment.Internal,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketComment, error) {
	const query = `
        SELECT id, ticket_id, author_user_id, body, internal, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		var comment domain.TicketComment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorUserID,
			&comment.Body,
			&comment.Internal,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

func (r *commentRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ticket_comments WHERE ticket_id=$1`, ticketID)
	return err
}
