package service

import (
	"net/http"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// Scope describes which tickets a caller may see. Exactly one of the
// branches is populated per role.
type Scope struct {
	All                 bool
	GroupIDs            []int
	CreatorOrAssigneeID *int
	MatchNone           bool
}

// ApplyTo merges the scope into a repository filter.
func (s Scope) ApplyTo(filter *repository.TicketFilter) {
	switch {
	case s.All:
	case s.MatchNone:
		filter.MatchNone = true
	case s.GroupIDs != nil:
		filter.ScopeGroupIDs = s.GroupIDs
	case s.CreatorOrAssigneeID != nil:
		filter.CreatorOrAssigneeID = s.CreatorOrAssigneeID
	default:
		filter.MatchNone = true
	}
}

// PermissionScope resolves caller visibility and field-level authorization.
// It is pure over the resolved CallerIdentity; group membership is already
// attached by the auth layer.
type PermissionScope struct{}

// NewPermissionScope constructs the scope resolver.
func NewPermissionScope() *PermissionScope {
	return &PermissionScope{}
}

// ScopeFor produces the visibility filter for a caller.
func (p *PermissionScope) ScopeFor(caller domain.CallerIdentity) Scope {
	switch caller.Role {
	case domain.RoleAdmin:
		return Scope{All: true}
	case domain.RoleManager:
		managed := caller.ManagedGroupIDs()
		if managed == nil {
			managed = []int{}
		}
		return Scope{GroupIDs: managed}
	case domain.RoleAgent:
		userID := caller.UserID
		return Scope{CreatorOrAssigneeID: &userID}
	default:
		return Scope{MatchNone: true}
	}
}

// CanView mirrors ScopeFor against one concrete ticket.
func (p *PermissionScope) CanView(caller domain.CallerIdentity, ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	switch caller.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleManager:
		for _, groupID := range caller.ManagedGroupIDs() {
			if groupID == ticket.RequestingGroupID {
				return true
			}
		}
		return false
	case domain.RoleAgent:
		if ticket.CreatorUserID == caller.UserID {
			return true
		}
		return ticket.AssigneeUserID != nil && *ticket.AssigneeUserID == caller.UserID
	default:
		return false
	}
}

// CanSetAdministrativeFields rejects non-admin attempts to change type,
// priority, status or assignee. The attempt is rejected, never silently
// dropped.
func (p *PermissionScope) CanSetAdministrativeFields(caller domain.CallerIdentity, patch TicketPatch) error {
	fields := patch.administrativeFields()
	if len(fields) == 0 {
		return nil
	}
	if caller.Role == domain.RoleAdmin {
		return nil
	}
	return apperrors.NewDomainError(
		"FORBIDDEN",
		"administrative fields require admin role",
		http.StatusForbidden,
		map[string]any{"fields": fields},
	)
}

// CanEdit enforces agent edit eligibility: agents may touch only tickets
// they created or are assigned to. Managers and admins are exempt.
func (p *PermissionScope) CanEdit(caller domain.CallerIdentity, ticket *domain.Ticket) error {
	if caller.Role != domain.RoleAgent {
		return nil
	}
	if ticket.CreatorUserID == caller.UserID {
		return nil
	}
	if ticket.AssigneeUserID != nil && *ticket.AssigneeUserID == caller.UserID {
		return nil
	}
	return apperrors.NewForbidden("agents may edit only tickets they created or are assigned to")
}
