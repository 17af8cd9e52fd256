package domain

import "time"

// Closure is the terminal record created when a ticket is resolved and
// closed. One-to-one with Ticket; created only through the closure workflow
// and destroyed only by reopening.
type Closure struct {
	ID                    int64
	TicketID              int64
	ResolvedAt            time.Time
	ResolutionCategoryID  int
	ResolutionDescription string
	ClosedByUserID        int
	CreatedAt             time.Time
}

// MinResolutionDescriptionLen is the minimum accepted resolution text length.
const MinResolutionDescriptionLen = 10

// ResolutionCategory classifies how a ticket was resolved.
type ResolutionCategory struct {
	ID        int
	Name      string
	Active    bool
	CreatedAt time.Time
}
