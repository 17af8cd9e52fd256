package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// OptionalInt distinguishes an absent JSON field from an explicit null.
type OptionalInt struct {
	Set   bool
	Value *int
}

// UnmarshalJSON marks the field present and captures null vs value.
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Type              domain.TicketType      `json:"type"`
	Priority          domain.TicketPriority  `json:"priority"`
	RequestingGroupID int                    `json:"requesting_group_id"`
	ExecutingGroupID  *int                   `json:"executing_group_id"`
	RequesterUserID   *int                   `json:"requester_user_id"`
	AssigneeUserID    *int                   `json:"assignee_user_id"`
	OpenedAt          *time.Time             `json:"opened_at"`
	DueAt             *time.Time             `json:"due_at"`
	Tags              []string               `json:"tags"`
	CustomFields      map[string]any         `json:"custom_fields"`
}

// UpdateTicketRequest payload for partial edits.
type UpdateTicketRequest struct {
	Title            *string                `json:"title"`
	Description      *string                `json:"description"`
	Type             *domain.TicketType     `json:"type"`
	Priority         *domain.TicketPriority `json:"priority"`
	Status           *domain.TicketStatus   `json:"status"`
	AssigneeUserID   *int                   `json:"assignee_user_id"`
	ExecutingGroupID OptionalInt            `json:"executing_group_id"`
	ParentTicketID   *int64                 `json:"parent_ticket_id"`
	OpenedAt         *time.Time             `json:"opened_at"`
	DueAt            *time.Time             `json:"due_at"`
	Tags             []string               `json:"tags"`
	CustomFields     map[string]any         `json:"custom_fields"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	ResolvedAt            time.Time `json:"resolved_at"`
	ResolutionCategoryID  int       `json:"resolution_category_id"`
	ResolutionDescription string    `json:"resolution_description"`
}

// AssociateChildRequest payload.
type AssociateChildRequest struct {
	ChildTicketID int64 `json:"child_ticket_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID                int64                 `json:"id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Type              domain.TicketType     `json:"type"`
	Priority          domain.TicketPriority `json:"priority"`
	Status            domain.TicketStatus   `json:"status"`
	ClosureStatus     domain.ClosureStatus  `json:"closure_status"`
	RequestingGroupID int                   `json:"requesting_group_id"`
	ExecutingGroupID  *int                  `json:"executing_group_id"`
	CreatorUserID     int                   `json:"creator_user_id"`
	AssigneeUserID    *int                  `json:"assignee_user_id"`
	OpenedAt          time.Time             `json:"opened_at"`
	ClosedAt          *time.Time            `json:"closed_at"`
	DueAt             *time.Time            `json:"due_at"`
	ParentTicketID    *int64                `json:"parent_ticket_id"`
	CustomFields      map[string]any        `json:"custom_fields,omitempty"`
	Tags              []string              `json:"tags"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// CanCloseResponse is the preflight answer.
type CanCloseResponse struct {
	Allowed          bool             `json:"allowed"`
	Reason           string           `json:"reason,omitempty"`
	BlockingChildren []TicketResponse `json:"blocking_children,omitempty"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	ID           int64     `json:"id"`
	TicketID     int64     `json:"ticket_id"`
	AuthorUserID int       `json:"author_user_id"`
	Body         string    `json:"body"`
	Internal     bool      `json:"internal"`
	CreatedAt    time.Time `json:"created_at"`
}

// HistoryResponse represents a change log entry.
type HistoryResponse struct {
	ID          int64               `json:"id"`
	ActorUserID *int                `json:"actor_user_id"`
	Action      domain.TicketAction `json:"action"`
	OldValue    map[string]any      `json:"old_value,omitempty"`
	NewValue    map[string]any      `json:"new_value,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}
