package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketUpdated      EventType = "ticket_updated"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketReopened     EventType = "ticket_reopened"
	EventTicketAssociated   EventType = "ticket_associated"
	EventTicketDissociated  EventType = "ticket_dissociated"
	EventTicketDeleted      EventType = "ticket_deleted"
	EventTicketCommentAdded EventType = "ticket_comment_added"
)

// AllEventTypes is the full subscription set for adapters that mirror
// every lifecycle change.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketClosed,
	EventTicketReopened,
	EventTicketAssociated,
	EventTicketDissociated,
	EventTicketDeleted,
	EventTicketCommentAdded,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID int         `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket *domain.Ticket `json:"ticket"`
}

// TicketUpdatedPayload carries full before/after snapshots plus the diff.
type TicketUpdatedPayload struct {
	Before        *domain.Ticket `json:"before"`
	After         *domain.Ticket `json:"after"`
	ChangedFields []string       `json:"changed_fields"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Before  *domain.Ticket  `json:"before"`
	After   *domain.Ticket  `json:"after"`
	Closure *domain.Closure `json:"closure"`
}

// TicketReopenedPayload records the destroyed closure for the audit trail.
type TicketReopenedPayload struct {
	PriorClosure *domain.Closure `json:"prior_closure"`
	After        *domain.Ticket  `json:"after"`
}

// TicketHierarchyPayload payload for associate/dissociate.
type TicketHierarchyPayload struct {
	ParentID int64 `json:"parent_id"`
	ChildID  int64 `json:"child_id"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Before *domain.Ticket `json:"before"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   int64  `json:"comment_id"`
	Internal    bool   `json:"internal"`
	BodyPreview string `json:"body_preview"`
}
