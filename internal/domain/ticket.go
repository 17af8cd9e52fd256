package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusWaiting    TicketStatus = "WAITING"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// ActiveStatuses are child states that block a parent from closing.
var ActiveStatuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusInProgress,
	TicketStatusWaiting,
}

// IsActive reports whether the status blocks closure of a parent ticket.
func (s TicketStatus) IsActive() bool {
	for _, st := range ActiveStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// ValidTicketStatus reports whether s is a known status value.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusWaiting,
		TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// ClosureStatus is orthogonal to TicketStatus: a ticket is administratively
// open until the closure workflow seals it.
type ClosureStatus string

const (
	ClosureStatusOpen   ClosureStatus = "OPEN"
	ClosureStatusClosed ClosureStatus = "CLOSED"
)

// TicketType enumerates request categories.
type TicketType string

const (
	TicketTypeIncident TicketType = "INCIDENT"
	TicketTypeRequest  TicketType = "REQUEST"
	TicketTypeProblem  TicketType = "PROBLEM"
	TicketTypeChange   TicketType = "CHANGE"
)

// ValidTicketType reports whether t is a known type value.
func ValidTicketType(t TicketType) bool {
	switch t {
	case TicketTypeIncident, TicketTypeRequest, TicketTypeProblem, TicketTypeChange:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// ValidTicketPriority reports whether p is a known priority value.
func ValidTicketPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for helpdesk work items.
type Ticket struct {
	ID                int64
	Title             string
	Description       string
	Type              TicketType
	Priority          TicketPriority
	Status            TicketStatus
	ClosureStatus     ClosureStatus
	RequestingGroupID int
	ExecutingGroupID  *int
	CreatorUserID     int
	AssigneeUserID    *int
	OpenedAt          time.Time
	ClosedAt          *time.Time
	DueAt             *time.Time
	ParentTicketID    *int64
	CustomFields      CustomFields
	Tags              []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep copy, used for before/after snapshots.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	dup := *t
	if t.ExecutingGroupID != nil {
		v := *t.ExecutingGroupID
		dup.ExecutingGroupID = &v
	}
	if t.AssigneeUserID != nil {
		v := *t.AssigneeUserID
		dup.AssigneeUserID = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		dup.ClosedAt = &v
	}
	if t.DueAt != nil {
		v := *t.DueAt
		dup.DueAt = &v
	}
	if t.ParentTicketID != nil {
		v := *t.ParentTicketID
		dup.ParentTicketID = &v
	}
	if t.CustomFields != nil {
		dup.CustomFields = make(CustomFields, len(t.CustomFields))
		for k, v := range t.CustomFields {
			dup.CustomFields[k] = v
		}
	}
	if t.Tags != nil {
		dup.Tags = append([]string(nil), t.Tags...)
	}
	return &dup
}

// OptionalGroupID distinguishes "field absent" from an explicit null when
// patching the executing group: absent keeps the current value, explicit
// null clears it.
type OptionalGroupID struct {
	Set   bool
	Value *int
}
