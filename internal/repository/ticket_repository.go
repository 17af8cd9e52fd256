package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures listing parameters. The scope fields restrict
// results to what the caller may see and are combined with the
// caller-supplied OR-lists.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Types      []domain.TicketType
	GroupIDs   []int
	Search     *string

	// Scope restrictions resolved from the caller identity.
	ScopeGroupIDs       []int
	CreatorOrAssigneeID *int
	MatchNone           bool

	Limit  int
	Offset int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListChildren(ctx context.Context, parentID int64) ([]domain.Ticket, error)
	HasChildren(ctx context.Context, id int64) (bool, error)
	CountByStatus(ctx context.Context, filter TicketFilter) (map[domain.TicketStatus]int64, error)
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, title, description, type, priority, status, closure_status,
               requesting_group_id, executing_group_id, creator_user_id, assignee_user_id,
               opened_at, closed_at, due_at, parent_ticket_id, custom_fields, tags,
               created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, type, priority, status, closure_status,
            requesting_group_id, executing_group_id, creator_user_id, assignee_user_id,
            opened_at, due_at, parent_ticket_id, custom_fields, tags)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Priority,
		ticket.Status,
		ticket.ClosureStatus,
		ticket.RequestingGroupID,
		ticket.ExecutingGroupID,
		ticket.CreatorUserID,
		ticket.AssigneeUserID,
		ticket.OpenedAt,
		ticket.DueAt,
		ticket.ParentTicketID,
		ticket.CustomFields,
		ticket.Tags,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, type=$3, priority=$4, status=$5,
            closure_status=$6, requesting_group_id=$7, executing_group_id=$8,
            assignee_user_id=$9, opened_at=$10, closed_at=$11, due_at=$12,
            parent_ticket_id=$13, custom_fields=$14, tags=$15, updated_at=NOW()
        WHERE id=$16`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Priority,
		ticket.Status,
		ticket.ClosureStatus,
		ticket.RequestingGroupID,
		ticket.ExecutingGroupID,
		ticket.AssigneeUserID,
		ticket.OpenedAt,
		ticket.ClosedAt,
		ticket.DueAt,
		ticket.ParentTicketID,
		ticket.CustomFields,
		ticket.Tags,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

// GetByIDForUpdate takes a row lock so concurrent transitions on the same
// ticket serialize.
func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 FOR UPDATE`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if filter.MatchNone {
		return []domain.Ticket{}, nil
	}

	clauses := []string{"1=1"}
	args := []any{}

	if filter.ScopeGroupIDs != nil {
		if len(filter.ScopeGroupIDs) == 0 {
			return []domain.Ticket{}, nil
		}
		args = append(args, filter.ScopeGroupIDs)
		clauses = append(clauses, fmt.Sprintf("requesting_group_id = ANY($%d)", len(args)))
	}
	if filter.CreatorOrAssigneeID != nil {
		args = append(args, *filter.CreatorOrAssigneeID)
		clauses = append(clauses, fmt.Sprintf("(creator_user_id=$%d OR assignee_user_id=$%d)", len(args), len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		args = append(args, filter.Priorities)
		clauses = append(clauses, fmt.Sprintf("priority = ANY($%d)", len(args)))
	}
	if len(filter.Types) > 0 {
		args = append(args, filter.Types)
		clauses = append(clauses, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if len(filter.GroupIDs) > 0 {
		args = append(args, filter.GroupIDs)
		clauses = append(clauses, fmt.Sprintf("requesting_group_id = ANY($%d)", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		term := strings.TrimSpace(*filter.Search)
		if id, ok := numericSearch(term); ok {
			args = append(args, id)
			clauses = append(clauses, fmt.Sprintf("id=$%d", len(args)))
		} else {
			args = append(args, "%"+strings.ToLower(term)+"%")
			placeholder := fmt.Sprintf("$%d", len(args))
			clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListChildren(ctx context.Context, parentID int64) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE parent_ticket_id=$1 ORDER BY created_at ASC`, ticketColumns)
	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE parent_ticket_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *ticketRepository) CountByStatus(ctx context.Context, filter TicketFilter) (map[domain.TicketStatus]int64, error) {
	counts := make(map[domain.TicketStatus]int64)
	if filter.MatchNone {
		return counts, nil
	}

	clauses := []string{"1=1"}
	args := []any{}
	if filter.ScopeGroupIDs != nil {
		if len(filter.ScopeGroupIDs) == 0 {
			return counts, nil
		}
		args = append(args, filter.ScopeGroupIDs)
		clauses = append(clauses, fmt.Sprintf("requesting_group_id = ANY($%d)", len(args)))
	}
	if filter.CreatorOrAssigneeID != nil {
		args = append(args, *filter.CreatorOrAssigneeID)
		clauses = append(clauses, fmt.Sprintf("(creator_user_id=$%d OR assignee_user_id=$%d)", len(args), len(args)))
	}

	query := fmt.Sprintf(`SELECT status, COUNT(*) FROM tickets WHERE %s GROUP BY status`,
		strings.Join(clauses, " AND "))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status domain.TicketStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func numericSearch(term string) (int64, bool) {
	if term == "" {
		return 0, false
	}
	var id int64
	for _, r := range term {
		if r < '0' || r > '9' {
			return 0, false
		}
		id = id*10 + int64(r-'0')
	}
	return id, true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Type,
		&ticket.Priority,
		&ticket.Status,
		&ticket.ClosureStatus,
		&ticket.RequestingGroupID,
		&ticket.ExecutingGroupID,
		&ticket.CreatorUserID,
		&ticket.AssigneeUserID,
		&ticket.OpenedAt,
		&ticket.ClosedAt,
		&ticket.DueAt,
		&ticket.ParentTicketID,
		&ticket.CustomFields,
		&ticket.Tags,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
