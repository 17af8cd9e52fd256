package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ClosureRepository persists the one-to-one closure records.
type ClosureRepository interface {
	Create(ctx context.Context, closure *domain.Closure) error
	GetByTicket(ctx context.Context, ticketID int64) (*domain.Closure, error)
	ExistsByTicket(ctx context.Context, ticketID int64) (bool, error)
	DeleteByTicket(ctx context.Context, ticketID int64) error
}

type closureRepository struct {
	db DB
}

// NewClosureRepository instantiates repository.
func NewClosureRepository(db DB) ClosureRepository {
	return &closureRepository{db: db}
}

func (r *closureRepository) Create(ctx context.Context, closure *domain.Closure) error {
	const query = `
        INSERT INTO ticket_closures (ticket_id, resolved_at, resolution_category_id,
            resolution_description, closed_by_user_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		closure.TicketID,
		closure.ResolvedAt,
		closure.ResolutionCategoryID,
		closure.ResolutionDescription,
		closure.ClosedByUserID,
	).Scan(&closure.ID, &closure.CreatedAt)
}

func (r *closureRepository) GetByTicket(ctx context.Context, ticketID int64) (*domain.Closure, error) {
	const query = `
        SELECT id, ticket_id, resolved_at, resolution_category_id, resolution_description,
               closed_by_user_id, created_at
        FROM ticket_closures WHERE ticket_id=$1`
	var closure domain.Closure
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&closure.ID,
		&closure.TicketID,
		&closure.ResolvedAt,
		&closure.ResolutionCategoryID,
		&closure.ResolutionDescription,
		&closure.ClosedByUserID,
		&closure.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &closure, nil
}

func (r *closureRepository) ExistsByTicket(ctx context.Context, ticketID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ticket_closures WHERE ticket_id=$1)`, ticketID).Scan(&exists)
	return exists, err
}

func (r *closureRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM ticket_closures WHERE ticket_id=$1`, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
