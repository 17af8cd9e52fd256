package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// Resolution is the closing payload supplied by the caller.
type Resolution struct {
	ResolvedAt  time.Time
	CategoryID  int
	Description string
}

// CanCloseResult is the pure preflight answer for the close transition.
type CanCloseResult struct {
	Allowed          bool
	Reason           string
	BlockingChildren []domain.Ticket
}

// ClosureWorkflow drives the close/reopen state machine over
// (status, closure_status). Closing creates the one-to-one closure record;
// reopening destroys it. Cancelled tickets are open but terminal here.
type ClosureWorkflow struct {
	store      repository.Store
	perms      *PermissionScope
	hierarchy  *HierarchyGuard
	dispatcher events.Dispatcher
	history    *HistoryRecorder
	logger     *zap.Logger
}

// ClosureDependencies bundles collaborators for the workflow.
type ClosureDependencies struct {
	Store      repository.Store
	Perms      *PermissionScope
	Hierarchy  *HierarchyGuard
	Dispatcher events.Dispatcher
	History    *HistoryRecorder
	Logger     *zap.Logger
}

// NewClosureWorkflow constructs the workflow.
func NewClosureWorkflow(deps ClosureDependencies) *ClosureWorkflow {
	return &ClosureWorkflow{
		store:      deps.Store,
		perms:      deps.Perms,
		hierarchy:  deps.Hierarchy,
		dispatcher: deps.Dispatcher,
		history:    deps.History,
		logger:     deps.Logger,
	}
}

// Close validates all closing preconditions and seals the ticket in one
// transaction. Side effects (history, events) run after commit.
func (w *ClosureWorkflow) Close(ctx context.Context, caller domain.CallerIdentity, ticketID int64, resolution Resolution) (*domain.Ticket, error) {
	var before, after *domain.Ticket
	var closure *domain.Closure

	err := w.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return mapNotFound(err, "ticket")
		}
		if !w.perms.CanView(caller, ticket) {
			return apperrors.NewForbidden("ticket is outside your scope")
		}
		if err := w.perms.CanEdit(caller, ticket); err != nil {
			return err
		}
		before = ticket.Clone()

		if err := w.validateClose(ctx, tx, ticket, resolution); err != nil {
			return err
		}

		closure = &domain.Closure{
			TicketID:              ticket.ID,
			ResolvedAt:            resolution.ResolvedAt,
			ResolutionCategoryID:  resolution.CategoryID,
			ResolutionDescription: strings.TrimSpace(resolution.Description),
			ClosedByUserID:        caller.UserID,
		}
		if err := tx.Closures().Create(ctx, closure); err != nil {
			return err
		}

		closedAt := resolution.ResolvedAt
		ticket.Status = domain.TicketStatusClosed
		ticket.ClosureStatus = domain.ClosureStatusClosed
		ticket.ClosedAt = &closedAt
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		after = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.history.Append(ctx, after.ID, caller, domain.ActionClose, ticketSnapshot(before), ticketSnapshot(after))
	publish(ctx, w.dispatcher, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: after.ID,
		Actor:    callerActor(caller),
		Payload: events.TicketClosedPayload{
			Before:  before,
			After:   after.Clone(),
			Closure: closure,
		},
	})
	return after, nil
}

func (w *ClosureWorkflow) validateClose(ctx context.Context, tx repository.Store, ticket *domain.Ticket, resolution Resolution) error {
	if ticket.ClosureStatus == domain.ClosureStatusClosed {
		return apperrors.NewInvalidState("ticket is already closed", nil)
	}
	if ticket.Status == domain.TicketStatusCancelled {
		return apperrors.NewInvalidState("cancelled tickets cannot be closed", nil)
	}
	exists, err := tx.Closures().ExistsByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.NewConflict("closure record already exists", nil)
	}

	category, err := tx.Categories().GetByID(ctx, resolution.CategoryID)
	if err != nil {
		return mapNotFound(err, "resolution category")
	}
	if !category.Active {
		return apperrors.NewValidationError("resolution category is inactive", map[string]any{
			"category_id": category.ID,
		})
	}

	if len(strings.TrimSpace(resolution.Description)) < domain.MinResolutionDescriptionLen {
		return apperrors.NewValidationError("resolution description too short", map[string]any{
			"min_length": domain.MinResolutionDescriptionLen,
		})
	}
	if resolution.ResolvedAt.After(time.Now()) {
		return apperrors.NewValidationError("resolved_at cannot be in the future", nil)
	}
	if resolution.ResolvedAt.Before(ticket.OpenedAt) {
		return apperrors.NewValidationError("resolved_at cannot precede opened_at", map[string]any{
			"opened_at": ticket.OpenedAt,
		})
	}

	allowed, blocking, err := w.hierarchy.CanClose(ctx, tx, ticket.ID)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.NewInvalidState("ticket has children still being worked", map[string]any{
			"blocking_children": ticketIDs(blocking),
		})
	}
	return nil
}

// Reopen destroys the closure record and returns the ticket to work.
// Admin only.
func (w *ClosureWorkflow) Reopen(ctx context.Context, caller domain.CallerIdentity, ticketID int64) (*domain.Ticket, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may reopen tickets")
	}

	var before, after *domain.Ticket
	var priorClosure *domain.Closure

	err := w.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return mapNotFound(err, "ticket")
		}
		before = ticket.Clone()

		if ticket.ClosureStatus != domain.ClosureStatusClosed {
			return apperrors.NewInvalidState("ticket is not closed", nil)
		}
		priorClosure, err = tx.Closures().GetByTicket(ctx, ticket.ID)
		if err != nil {
			return mapNotFound(err, "closure")
		}
		if err := tx.Closures().DeleteByTicket(ctx, ticket.ID); err != nil {
			return err
		}

		ticket.Status = domain.TicketStatusInProgress
		ticket.ClosureStatus = domain.ClosureStatusOpen
		ticket.ClosedAt = nil
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		after = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.history.Append(ctx, after.ID, caller, domain.ActionReopen, ticketSnapshot(before), ticketSnapshot(after))
	publish(ctx, w.dispatcher, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: after.ID,
		Actor:    callerActor(caller),
		Payload: events.TicketReopenedPayload{
			PriorClosure: priorClosure,
			After:        after.Clone(),
		},
	})
	return after, nil
}

// CanClose is the pure preflight used to check the close transition
// without mutating anything.
func (w *ClosureWorkflow) CanClose(ctx context.Context, ticketID int64) (CanCloseResult, error) {
	ticket, err := w.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return CanCloseResult{}, mapNotFound(err, "ticket")
	}
	if ticket.ClosureStatus == domain.ClosureStatusClosed {
		return CanCloseResult{Reason: "ticket is already closed"}, nil
	}
	if ticket.Status == domain.TicketStatusCancelled {
		return CanCloseResult{Reason: "cancelled tickets cannot be closed"}, nil
	}
	allowed, blocking, err := w.hierarchy.CanClose(ctx, w.store, ticket.ID)
	if err != nil {
		return CanCloseResult{}, err
	}
	if !allowed {
		return CanCloseResult{
			Reason:           "ticket has children still being worked",
			BlockingChildren: blocking,
		}, nil
	}
	return CanCloseResult{Allowed: true}, nil
}
