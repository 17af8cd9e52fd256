package domain

import "time"

// Group represents an organizational unit tickets are routed to.
type Group struct {
	ID          int
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GroupRole is the role a user holds within one group.
type GroupRole string

const (
	GroupRoleManager GroupRole = "MANAGER"
	GroupRoleAgent   GroupRole = "AGENT"
)

// GroupMembership links a user to a group with a role.
type GroupMembership struct {
	UserID    int
	GroupID   int
	Role      GroupRole
	Active    bool
	CreatedAt time.Time
}
