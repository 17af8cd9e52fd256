package domain

import "time"

// TicketAction identifies what happened in a history entry.
type TicketAction string

const (
	ActionCreate     TicketAction = "CREATE"
	ActionUpdate     TicketAction = "UPDATE"
	ActionClose      TicketAction = "CLOSE"
	ActionReopen     TicketAction = "REOPEN"
	ActionAssociate  TicketAction = "ASSOCIATE"
	ActionDissociate TicketAction = "DISSOCIATE"
	ActionComment    TicketAction = "COMMENT"
	ActionDelete     TicketAction = "DELETE"
)

// TicketHistory is an immutable per-field change log entry.
type TicketHistory struct {
	ID          int64
	TicketID    int64
	ActorUserID *int
	Action      TicketAction
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
