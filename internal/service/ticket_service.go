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

// TicketService is the lifecycle facade: every ticket mutation enters here,
// gets permission-scoped, and routes status changes through the closure
// workflow.
type TicketService struct {
	store      repository.Store
	perms      *PermissionScope
	hierarchy  *HierarchyGuard
	closure    *ClosureWorkflow
	dispatcher events.Dispatcher
	history    *HistoryRecorder
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Perms      *PermissionScope
	Hierarchy  *HierarchyGuard
	Closure    *ClosureWorkflow
	Dispatcher events.Dispatcher
	History    *HistoryRecorder
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		perms:      deps.Perms,
		hierarchy:  deps.Hierarchy,
		closure:    deps.Closure,
		dispatcher: deps.Dispatcher,
		history:    deps.History,
		logger:     deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title             string
	Description       string
	Type              domain.TicketType
	Priority          domain.TicketPriority
	RequestingGroupID int
	ExecutingGroupID  *int
	RequesterUserID   *int
	AssigneeUserID    *int
	OpenedAt          *time.Time
	DueAt             *time.Time
	Tags              []string
	CustomFields      domain.CustomFields
}

// TicketPatch is a partial update. Nil pointer fields are untouched; the
// executing group uses an explicit absent-vs-null sentinel.
type TicketPatch struct {
	Title            *string
	Description      *string
	Type             *domain.TicketType
	Priority         *domain.TicketPriority
	Status           *domain.TicketStatus
	AssigneeUserID   *int
	ExecutingGroupID domain.OptionalGroupID
	ParentTicketID   *int64
	OpenedAt         *time.Time
	DueAt            *time.Time
	Tags             []string
	CustomFields     domain.CustomFields
}

func (p TicketPatch) administrativeFields() []string {
	var fields []string
	if p.Type != nil {
		fields = append(fields, "type")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.AssigneeUserID != nil {
		fields = append(fields, "assignee_user_id")
	}
	return fields
}

// TicketListFilter describes caller-supplied listing filters. The list
// fields are OR-lists; Search is substring over title+description unless
// all-numeric, which becomes an id lookup.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Types      []domain.TicketType
	GroupIDs   []int
	Search     *string
	Limit      int
	Offset     int
}

// Create files a new ticket. The effective requester is the caller unless
// an admin explicitly designates a different active user.
func (s *TicketService) Create(ctx context.Context, caller domain.CallerIdentity, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	if !domain.ValidTicketType(input.Type) {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": input.Type})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidTicketPriority(priority) {
		return nil, apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": priority})
	}
	if input.AssigneeUserID != nil && caller.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("administrative fields require admin role")
	}

	now := time.Now()
	openedAt := now
	if input.OpenedAt != nil {
		if caller.Role != domain.RoleAdmin {
			return nil, apperrors.NewForbidden("only admins may override opened_at")
		}
		if input.OpenedAt.After(now) {
			return nil, apperrors.NewValidationError("opened_at cannot be in the future", nil)
		}
		openedAt = *input.OpenedAt
	}

	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		creatorID, err := s.resolveRequester(ctx, tx, caller, input.RequesterUserID)
		if err != nil {
			return err
		}

		group, err := tx.Groups().GetByID(ctx, input.RequestingGroupID)
		if err != nil {
			return mapNotFound(err, "group")
		}
		if !group.IsActive {
			return apperrors.NewValidationError("requesting group is inactive", map[string]any{"group_id": group.ID})
		}
		if caller.Role != domain.RoleAdmin && !caller.IsMemberOf(group.ID) {
			return apperrors.NewForbidden("caller does not belong to the requesting group")
		}
		if input.ExecutingGroupID != nil {
			if err := s.validateExecutingGroup(ctx, tx, *input.ExecutingGroupID); err != nil {
				return err
			}
		}

		ticket = &domain.Ticket{
			Title:             title,
			Description:       description,
			Type:              input.Type,
			Priority:          priority,
			Status:            domain.TicketStatusNew,
			ClosureStatus:     domain.ClosureStatusOpen,
			RequestingGroupID: group.ID,
			ExecutingGroupID:  input.ExecutingGroupID,
			CreatorUserID:     creatorID,
			AssigneeUserID:    input.AssigneeUserID,
			OpenedAt:          openedAt,
			DueAt:             input.DueAt,
			Tags:              input.Tags,
			CustomFields:      input.CustomFields,
		}
		return tx.Tickets().Create(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	s.history.Append(ctx, ticket.ID, caller, domain.ActionCreate, nil, ticketSnapshot(ticket))
	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    callerActor(caller),
		Payload:  events.TicketCreatedPayload{Ticket: ticket.Clone()},
	})
	return ticket, nil
}

func (s *TicketService) resolveRequester(ctx context.Context, tx repository.Store, caller domain.CallerIdentity, designated *int) (int, error) {
	if designated == nil || *designated == caller.UserID {
		return caller.UserID, nil
	}
	if caller.Role != domain.RoleAdmin {
		return 0, apperrors.NewForbidden("only admins may designate a different requester")
	}
	requester, err := tx.Users().GetByID(ctx, *designated)
	if err != nil {
		return 0, mapNotFound(err, "requester")
	}
	if requester.Status != domain.UserStatusActive {
		return 0, apperrors.NewValidationError("designated requester is not active", map[string]any{"user_id": requester.ID})
	}
	return requester.ID, nil
}

func (s *TicketService) validateExecutingGroup(ctx context.Context, tx repository.Store, groupID int) error {
	group, err := tx.Groups().GetByID(ctx, groupID)
	if err != nil {
		return mapNotFound(err, "executing group")
	}
	if !group.IsActive {
		return apperrors.NewValidationError("executing group is inactive", map[string]any{"group_id": group.ID})
	}
	return nil
}

// Update applies a partial edit. Closed tickets are immutable, statuses
// resolved/closed are unreachable here, and the parent link never mutates
// through this path.
func (s *TicketService) Update(ctx context.Context, caller domain.CallerIdentity, ticketID int64, patch TicketPatch) (*domain.Ticket, error) {
	var before, after *domain.Ticket

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return mapNotFound(err, "ticket")
		}
		if !s.perms.CanView(caller, ticket) {
			return apperrors.NewForbidden("ticket is outside your scope")
		}
		if ticket.ClosureStatus == domain.ClosureStatusClosed {
			return apperrors.NewInvalidState("ticket is closed", nil)
		}
		if patch.ParentTicketID != nil {
			return apperrors.NewValidationError("parent link cannot be changed through update; use the association operations", nil)
		}
		if patch.Status != nil {
			if *patch.Status == domain.TicketStatusResolved || *patch.Status == domain.TicketStatusClosed {
				return apperrors.NewInvalidState("status can only reach resolved/closed through the closure workflow", nil)
			}
			if !domain.ValidTicketStatus(*patch.Status) {
				return apperrors.NewValidationError("unknown ticket status", map[string]any{"status": *patch.Status})
			}
		}
		if err := s.perms.CanSetAdministrativeFields(caller, patch); err != nil {
			return err
		}
		if err := s.perms.CanEdit(caller, ticket); err != nil {
			return err
		}
		before = ticket.Clone()

		if err := s.applyPatch(ctx, tx, caller, ticket, patch); err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		after = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.history.Append(ctx, after.ID, caller, domain.ActionUpdate, ticketSnapshot(before), ticketSnapshot(after))
	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: after.ID,
		Actor:    callerActor(caller),
		Payload: events.TicketUpdatedPayload{
			Before:        before,
			After:         after.Clone(),
			ChangedFields: changedFields(before, after),
		},
	})
	return after, nil
}

func (s *TicketService) applyPatch(ctx context.Context, tx repository.Store, caller domain.CallerIdentity, ticket *domain.Ticket, patch TicketPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return apperrors.NewValidationError("title cannot be empty", nil)
		}
		ticket.Title = title
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if description == "" {
			return apperrors.NewValidationError("description cannot be empty", nil)
		}
		ticket.Description = description
	}
	if patch.Type != nil {
		if !domain.ValidTicketType(*patch.Type) {
			return apperrors.NewValidationError("unknown ticket type", map[string]any{"type": *patch.Type})
		}
		ticket.Type = *patch.Type
	}
	if patch.Priority != nil {
		if !domain.ValidTicketPriority(*patch.Priority) {
			return apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": *patch.Priority})
		}
		ticket.Priority = *patch.Priority
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	if patch.AssigneeUserID != nil {
		ticket.AssigneeUserID = patch.AssigneeUserID
	}
	if patch.ExecutingGroupID.Set {
		if patch.ExecutingGroupID.Value != nil {
			if err := s.validateExecutingGroup(ctx, tx, *patch.ExecutingGroupID.Value); err != nil {
				return err
			}
		}
		ticket.ExecutingGroupID = patch.ExecutingGroupID.Value
	}
	if patch.OpenedAt != nil {
		if caller.Role != domain.RoleAdmin {
			return apperrors.NewForbidden("only admins may override opened_at")
		}
		if patch.OpenedAt.After(time.Now()) {
			return apperrors.NewValidationError("opened_at cannot be in the future", nil)
		}
		if patch.OpenedAt.After(ticket.CreatedAt) {
			return apperrors.NewValidationError("opened_at cannot be after the ticket was recorded", map[string]any{
				"created_at": ticket.CreatedAt,
			})
		}
		ticket.OpenedAt = *patch.OpenedAt
	}
	if patch.DueAt != nil {
		ticket.DueAt = patch.DueAt
	}
	if patch.Tags != nil {
		ticket.Tags = patch.Tags
	}
	if len(patch.CustomFields) > 0 {
		ticket.CustomFields = ticket.CustomFields.Merge(patch.CustomFields)
	}
	return nil
}

// Get loads a ticket and enforces visibility.
func (s *TicketService) Get(ctx context.Context, caller domain.CallerIdentity, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapNotFound(err, "ticket")
	}
	if !s.perms.CanView(caller, ticket) {
		return nil, apperrors.NewForbidden("ticket is outside your scope")
	}
	return ticket, nil
}

// List returns tickets visible to the caller, intersected with the
// caller-supplied filters.
func (s *TicketService) List(ctx context.Context, caller domain.CallerIdentity, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Types:      filter.Types,
		GroupIDs:   filter.GroupIDs,
		Search:     filter.Search,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	s.perms.ScopeFor(caller).ApplyTo(&repoFilter)
	return s.store.Tickets().ListWithFilter(ctx, repoFilter)
}

// CountByStatus returns scope-filtered status counts.
func (s *TicketService) CountByStatus(ctx context.Context, caller domain.CallerIdentity) (map[domain.TicketStatus]int64, error) {
	var repoFilter repository.TicketFilter
	s.perms.ScopeFor(caller).ApplyTo(&repoFilter)
	return s.store.Tickets().CountByStatus(ctx, repoFilter)
}

// Close routes the close transition through the closure workflow.
func (s *TicketService) Close(ctx context.Context, caller domain.CallerIdentity, ticketID int64, resolution Resolution) (*domain.Ticket, error) {
	return s.closure.Close(ctx, caller, ticketID, resolution)
}

// Reopen routes the reopen transition through the closure workflow.
func (s *TicketService) Reopen(ctx context.Context, caller domain.CallerIdentity, ticketID int64) (*domain.Ticket, error) {
	return s.closure.Reopen(ctx, caller, ticketID)
}

// CanClose preflights the close transition for a visible ticket.
func (s *TicketService) CanClose(ctx context.Context, caller domain.CallerIdentity, ticketID int64) (CanCloseResult, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return CanCloseResult{}, mapNotFound(err, "ticket")
	}
	if !s.perms.CanView(caller, ticket) {
		return CanCloseResult{}, apperrors.NewForbidden("ticket is outside your scope")
	}
	return s.closure.CanClose(ctx, ticketID)
}

// AddComment appends a thread entry. Closed tickets reject comments;
// internal comments are restricted to managers and admins.
func (s *TicketService) AddComment(ctx context.Context, caller domain.CallerIdentity, ticketID int64, body string, internal bool) (*domain.TicketComment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	if internal && caller.Role == domain.RoleAgent {
		return nil, apperrors.NewForbidden("internal comments are restricted to managers and admins")
	}

	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapNotFound(err, "ticket")
	}
	if !s.perms.CanView(caller, ticket) {
		return nil, apperrors.NewForbidden("ticket is outside your scope")
	}
	if ticket.ClosureStatus == domain.ClosureStatusClosed {
		return nil, apperrors.NewInvalidState("ticket is closed", nil)
	}

	comment := &domain.TicketComment{
		TicketID:     ticket.ID,
		AuthorUserID: caller.UserID,
		Body:         body,
		Internal:     internal,
	}
	if err := s.store.Comments().Create(ctx, comment); err != nil {
		return nil, err
	}

	s.history.Append(ctx, ticket.ID, caller, domain.ActionComment, nil, map[string]any{
		"comment_id": comment.ID,
		"internal":   comment.Internal,
	})
	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		Actor:    callerActor(caller),
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			Internal:    comment.Internal,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// ListComments returns the thread; internal entries are hidden from agents.
func (s *TicketService) ListComments(ctx context.Context, caller domain.CallerIdentity, ticketID int64) ([]domain.TicketComment, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapNotFound(err, "ticket")
	}
	if !s.perms.CanView(caller, ticket) {
		return nil, apperrors.NewForbidden("ticket is outside your scope")
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if caller.Role == domain.RoleAgent {
		visible := make([]domain.TicketComment, 0, len(comments))
		for _, comment := range comments {
			if !comment.Internal {
				visible = append(visible, comment)
			}
		}
		return visible, nil
	}
	return comments, nil
}

// AssociateChild links child under parent, enforcing the one-level
// hierarchy invariants inside a single transaction.
func (s *TicketService) AssociateChild(ctx context.Context, caller domain.CallerIdentity, parentID, childID int64) error {
	var parent, child *domain.Ticket
	var beforeChild *domain.Ticket

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		parent, err = tx.Tickets().GetByIDForUpdate(ctx, parentID)
		if err != nil {
			return mapNotFound(err, "parent ticket")
		}
		if parentID != childID {
			child, err = tx.Tickets().GetByIDForUpdate(ctx, childID)
			if err != nil {
				return mapNotFound(err, "child ticket")
			}
		} else {
			child = parent
		}

		if !s.perms.CanView(caller, parent) || !s.perms.CanView(caller, child) {
			return apperrors.NewForbidden("ticket is outside your scope")
		}
		if err := s.perms.CanEdit(caller, parent); err != nil {
			return err
		}
		if parent.ClosureStatus == domain.ClosureStatusClosed {
			return apperrors.NewInvalidState("cannot attach children to a closed ticket", nil)
		}

		if err := s.hierarchy.CheckAssociate(ctx, tx, parent, child); err != nil {
			return err
		}
		beforeChild = child.Clone()
		child.ParentTicketID = &parent.ID
		return tx.Tickets().Update(ctx, child)
	})
	if err != nil {
		return err
	}

	s.history.Append(ctx, child.ID, caller, domain.ActionAssociate,
		map[string]any{"parent_ticket_id": beforeChild.ParentTicketID},
		map[string]any{"parent_ticket_id": parent.ID})
	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketAssociated,
		TicketID: parent.ID,
		Actor:    callerActor(caller),
		Payload:  events.TicketHierarchyPayload{ParentID: parent.ID, ChildID: child.ID},
	})
	return nil
}

// DissociateChild removes the child's parent link.
func (s *TicketService) DissociateChild(ctx context.Context, caller domain.CallerIdentity, childID int64) error {
	var child, parent *domain.Ticket
	var parentID int64

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		child, err = tx.Tickets().GetByIDForUpdate(ctx, childID)
		if err != nil {
			return mapNotFound(err, "ticket")
		}
		if err := s.hierarchy.CheckDissociate(child); err != nil {
			return err
		}
		parentID = *child.ParentTicketID
		parent, err = tx.Tickets().GetByIDForUpdate(ctx, parentID)
		if err != nil {
			return mapNotFound(err, "parent ticket")
		}
		if !s.perms.CanView(caller, parent) || !s.perms.CanView(caller, child) {
			return apperrors.NewForbidden("ticket is outside your scope")
		}
		if err := s.perms.CanEdit(caller, parent); err != nil {
			return err
		}

		child.ParentTicketID = nil
		return tx.Tickets().Update(ctx, child)
	})
	if err != nil {
		return err
	}

	s.history.Append(ctx, child.ID, caller, domain.ActionDissociate,
		map[string]any{"parent_ticket_id": parentID},
		map[string]any{"parent_ticket_id": nil})
	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketDissociated,
		TicketID: parentID,
		Actor:    callerActor(caller),
		Payload:  events.TicketHierarchyPayload{ParentID: parentID, ChildID: child.ID},
	})
	return nil
}

// ListChildren returns a parent's children in creation order.
func (s *TicketService) ListChildren(ctx context.Context, caller domain.CallerIdentity, parentID int64) ([]domain.Ticket, error) {
	parent, err := s.store.Tickets().GetByID(ctx, parentID)
	if err != nil {
		return nil, mapNotFound(err, "ticket")
	}
	if !s.perms.CanView(caller, parent) {
		return nil, apperrors.NewForbidden("ticket is outside your scope")
	}
	return s.hierarchy.ListChildren(ctx, parentID)
}

// ListHistory exposes the change log for a visible ticket.
func (s *TicketService) ListHistory(ctx context.Context, caller domain.CallerIdentity, ticketID int64, limit, offset int) ([]domain.TicketHistory, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapNotFound(err, "ticket")
	}
	if !s.perms.CanView(caller, ticket) {
		return nil, apperrors.NewForbidden("ticket is outside your scope")
	}
	return s.history.ListByTicket(ctx, ticketID, limit, offset)
}

// Delete permanently removes a ticket with its closure, comments and
// history. Admin only; children are detached by the store's FK rule.
func (s *TicketService) Delete(ctx context.Context, caller domain.CallerIdentity, ticketID int64) error {
	if caller.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins may delete tickets")
	}

	var before *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return mapNotFound(err, "ticket")
		}
		before = ticket.Clone()
		if exists, err := tx.Closures().ExistsByTicket(ctx, ticketID); err != nil {
			return err
		} else if exists {
			if err := tx.Closures().DeleteByTicket(ctx, ticketID); err != nil {
				return err
			}
		}
		if err := tx.Comments().DeleteByTicket(ctx, ticketID); err != nil {
			return err
		}
		if err := tx.History().DeleteByTicket(ctx, ticketID); err != nil {
			return err
		}
		return tx.Tickets().Delete(ctx, ticketID)
	})
	if err != nil {
		return err
	}

	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		Actor:    callerActor(caller),
		Payload:  events.TicketDeletedPayload{Before: before},
	})
	return nil
}
