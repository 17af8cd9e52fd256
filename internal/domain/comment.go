package domain

import "time"

// TicketComment is a thread entry on a ticket. Internal comments are
// visible to managers and admins only.
type TicketComment struct {
	ID           int64
	TicketID     int64
	AuthorUserID int
	Body         string
	Internal     bool
	CreatedAt    time.Time
}
