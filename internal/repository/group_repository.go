package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// GroupRepository is the group directory: group lookups and membership
// resolution for caller identities.
type GroupRepository interface {
	GetByID(ctx context.Context, id int) (*domain.Group, error)
	IsActive(ctx context.Context, id int) (bool, error)
	IsMember(ctx context.Context, userID, groupID int) (bool, error)
	ListMembershipsByUser(ctx context.Context, userID int) ([]domain.GroupMembership, error)
}

type groupRepository struct {
	db DB
}

// NewGroupRepository instantiates repository.
func NewGroupRepository(db DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) GetByID(ctx context.Context, id int) (*domain.Group, error) {
	const query = `
        SELECT id, name, description, is_active, created_at, updated_at
        FROM groups WHERE id=$1`
	var group domain.Group
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.IsActive,
		&group.CreatedAt,
		&group.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) IsActive(ctx context.Context, id int) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `SELECT is_active FROM groups WHERE id=$1`, id).Scan(&active)
	return active, err
}

func (r *groupRepository) IsMember(ctx context.Context, userID, groupID int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM group_memberships
            WHERE user_id=$1 AND group_id=$2 AND active
        )`, userID, groupID).Scan(&exists)
	return exists, err
}

func (r *groupRepository) ListMembershipsByUser(ctx context.Context, userID int) ([]domain.GroupMembership, error) {
	const query = `
        SELECT user_id, group_id, role, active, created_at
        FROM group_memberships WHERE user_id=$1`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GroupMembership
	for rows.Next() {
		var m domain.GroupMembership
		if err := rows.Scan(&m.UserID, &m.GroupID, &m.Role, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
