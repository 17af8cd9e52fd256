package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle over HTTP.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.tickets.Create(c.UserContext(), caller, service.TicketCreateInput{
		Title:             req.Title,
		Description:       req.Description,
		Type:              req.Type,
		Priority:          req.Priority,
		RequestingGroupID: req.RequestingGroupID,
		ExecutingGroupID:  req.ExecutingGroupID,
		RequesterUserID:   req.RequesterUserID,
		AssigneeUserID:    req.AssigneeUserID,
		OpenedAt:          req.OpenedAt,
		DueAt:             req.DueAt,
		Tags:              req.Tags,
		CustomFields:      req.CustomFields,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toTicketResponse(ticket))
}

// List handles GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter, err := parseListFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.List(c.UserContext(), caller, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tickets": toTicketResponses(tickets)})
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Get(c.UserContext(), caller, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(toTicketResponse(ticket))
}

// Update handles PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.tickets.Update(c.UserContext(), caller, ticketID, service.TicketPatch{
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Priority:       req.Priority,
		Status:         req.Status,
		AssigneeUserID: req.AssigneeUserID,
		ExecutingGroupID: domain.OptionalGroupID{
			Set:   req.ExecutingGroupID.Set,
			Value: req.ExecutingGroupID.Value,
		},
		ParentTicketID: req.ParentTicketID,
		OpenedAt:       req.OpenedAt,
		DueAt:          req.DueAt,
		Tags:           req.Tags,
		CustomFields:   req.CustomFields,
	})
	if err != nil {
		return err
	}
	return c.JSON(toTicketResponse(ticket))
}

// Delete handles DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), caller, ticketID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Close handles POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}

	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.tickets.Close(c.UserContext(), caller, ticketID, service.Resolution{
		ResolvedAt:  req.ResolvedAt,
		CategoryID:  req.ResolutionCategoryID,
		Description: req.ResolutionDescription,
	})
	if err != nil {
		return err
	}
	return c.JSON(toTicketResponse(ticket))
}

// Reopen handles POST /tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Reopen(c.UserContext(), caller, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(toTicketResponse(ticket))
}

// CanClose handles GET /tickets/:id/can-close.
func (h *TicketsHandler) CanClose(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}
	result, err := h.tickets.CanClose(c.UserContext(), caller, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(dto.CanCloseResponse{
		Allowed:          result.Allowed,
		Reason:           result.Reason,
		BlockingChildren: toTicketResponses(result.BlockingChildren),
	})
}

// AssociateChild handles POST /tickets/:id/children.
func (h *TicketsHandler) AssociateChild(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	parentID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}

	var req dto.AssociateChildRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.ChildTicketID == 0 {
		return apperrors.NewValidationError("child_ticket_id required", nil)
	}

	if err := h.tickets.AssociateChild(c.UserContext(), caller, parentID, req.ChildTicketID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DissociateChild handles DELETE /tickets/:id/parent.
func (h *TicketsHandler) DissociateChild(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	childID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}
	if err := h.tickets.DissociateChild(c.UserContext(), caller, childID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListChildren handles GET /tickets/:id/children.
func (h *TicketsHandler) ListChildren(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	parentID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}
	children, err := h.tickets.ListChildren(c.UserContext(), caller, parentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tickets": toTicketResponses(children)})
}

// AddComment handles POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	comment, err := h.tickets.AddComment(c.UserContext(), caller, ticketID, req.Body, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toCommentResponse(comment))
}

// ListComments handles GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.tickets.ListComments(c.UserContext(), caller, ticketID)
	if err != nil {
		return err
	}
	out := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, toCommentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"comments": out})
}

// ListHistory handles GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c, "id")
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	entries, err := h.tickets.ListHistory(c.UserContext(), caller, ticketID, limit, offset)
	if err != nil {
		return err
	}
	out := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.HistoryResponse{
			ID:          entry.ID,
			ActorUserID: entry.ActorUserID,
			Action:      entry.Action,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"history": out})
}

// Stats handles GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	counts, err := h.tickets.CountByStatus(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"counts": counts})
}

func parseTicketID(c *fiber.Ctx, param string) (int64, error) {
	raw := c.Params(param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": raw})
	}
	return id, nil
}

func parseListFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}

	for _, raw := range splitQuery(c.Query("status")) {
		status := domain.TicketStatus(strings.ToUpper(raw))
		if !domain.ValidTicketStatus(status) {
			return filter, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": raw})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range splitQuery(c.Query("priority")) {
		priority := domain.TicketPriority(strings.ToUpper(raw))
		if !domain.ValidTicketPriority(priority) {
			return filter, apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": raw})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	for _, raw := range splitQuery(c.Query("type")) {
		ticketType := domain.TicketType(strings.ToUpper(raw))
		if !domain.ValidTicketType(ticketType) {
			return filter, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": raw})
		}
		filter.Types = append(filter.Types, ticketType)
	}
	for _, raw := range splitQuery(c.Query("group_id")) {
		groupID, err := strconv.Atoi(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid group_id", map[string]any{"group_id": raw})
		}
		filter.GroupIDs = append(filter.GroupIDs, groupID)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.Search = &search
	}
	return filter, nil
}

func splitQuery(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func toTicketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                ticket.ID,
		Title:             ticket.Title,
		Description:       ticket.Description,
		Type:              ticket.Type,
		Priority:          ticket.Priority,
		Status:            ticket.Status,
		ClosureStatus:     ticket.ClosureStatus,
		RequestingGroupID: ticket.RequestingGroupID,
		ExecutingGroupID:  ticket.ExecutingGroupID,
		CreatorUserID:     ticket.CreatorUserID,
		AssigneeUserID:    ticket.AssigneeUserID,
		OpenedAt:          ticket.OpenedAt,
		ClosedAt:          ticket.ClosedAt,
		DueAt:             ticket.DueAt,
		ParentTicketID:    ticket.ParentTicketID,
		CustomFields:      ticket.CustomFields,
		Tags:              ticket.Tags,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
}

func toTicketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	out := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, toTicketResponse(&tickets[i]))
	}
	return out
}

func toCommentResponse(comment *domain.TicketComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:           comment.ID,
		TicketID:     comment.TicketID,
		AuthorUserID: comment.AuthorUserID,
		Body:         comment.Body,
		Internal:     comment.Internal,
		CreatedAt:    comment.CreatedAt,
	}
}
