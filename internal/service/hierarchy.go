package service

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// HierarchyGuard validates parent/child links between tickets. Hierarchy is
// at most one level deep: a parent can never be a child and vice versa.
type HierarchyGuard struct {
	store repository.Store
}

// NewHierarchyGuard constructs the guard.
func NewHierarchyGuard(store repository.Store) *HierarchyGuard {
	return &HierarchyGuard{store: store}
}

// CheckAssociate validates that child may be linked under parent. Both
// tickets must already be loaded (and locked) by the surrounding
// transaction.
func (g *HierarchyGuard) CheckAssociate(ctx context.Context, tx repository.Store, parent, child *domain.Ticket) error {
	if parent.ID == child.ID {
		return apperrors.NewValidationError("a ticket cannot be its own parent", nil)
	}
	if parent.ParentTicketID != nil {
		return apperrors.NewInvalidState("parent ticket is itself a child; hierarchy is one level deep", map[string]any{
			"parent_ticket_id": *parent.ParentTicketID,
		})
	}
	if child.ParentTicketID != nil {
		return apperrors.NewConflict("child ticket already has a parent", map[string]any{
			"parent_ticket_id": *child.ParentTicketID,
		})
	}
	hasChildren, err := tx.Tickets().HasChildren(ctx, child.ID)
	if err != nil {
		return err
	}
	if hasChildren {
		return apperrors.NewConflict("child ticket has children of its own", nil)
	}
	return nil
}

// CheckDissociate validates that child currently has a parent.
func (g *HierarchyGuard) CheckDissociate(child *domain.Ticket) error {
	if child.ParentTicketID == nil {
		return apperrors.NewInvalidState("ticket has no parent", nil)
	}
	return nil
}

// ListChildren returns a ticket's children ordered by creation time.
func (g *HierarchyGuard) ListChildren(ctx context.Context, parentID int64) ([]domain.Ticket, error) {
	if _, err := g.store.Tickets().GetByID(ctx, parentID); err != nil {
		return nil, mapNotFound(err, "ticket")
	}
	return g.store.Tickets().ListChildren(ctx, parentID)
}

// CanClose reports whether the ticket may close, returning the children
// that block it (status new, in progress or waiting).
func (g *HierarchyGuard) CanClose(ctx context.Context, tx repository.Store, ticketID int64) (bool, []domain.Ticket, error) {
	children, err := tx.Tickets().ListChildren(ctx, ticketID)
	if err != nil {
		return false, nil, err
	}
	var blocking []domain.Ticket
	for _, child := range children {
		if child.Status.IsActive() {
			blocking = append(blocking, child)
		}
	}
	return len(blocking) == 0, blocking, nil
}
