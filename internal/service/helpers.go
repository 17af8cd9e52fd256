package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func callerActor(caller domain.CallerIdentity) events.Actor {
	return events.Actor{UserID: caller.UserID, Role: caller.Role}
}

func mapNotFound(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return err
}

// ticketSnapshot flattens the fields worth auditing into a history map.
func ticketSnapshot(t *domain.Ticket) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"title":               t.Title,
		"description":         t.Description,
		"type":                t.Type,
		"priority":            t.Priority,
		"status":              t.Status,
		"closure_status":      t.ClosureStatus,
		"requesting_group_id": t.RequestingGroupID,
		"executing_group_id":  t.ExecutingGroupID,
		"assignee_user_id":    t.AssigneeUserID,
		"opened_at":           t.OpenedAt,
		"closed_at":           t.ClosedAt,
		"due_at":              t.DueAt,
		"parent_ticket_id":    t.ParentTicketID,
		"tags":                t.Tags,
		"custom_fields":       t.CustomFields,
	}
}

// changedFields diffs two snapshots, returning the keys whose values differ.
func changedFields(before, after *domain.Ticket) []string {
	old := ticketSnapshot(before)
	current := ticketSnapshot(after)
	var changed []string
	for key, oldVal := range old {
		if !reflect.DeepEqual(oldVal, current[key]) {
			changed = append(changed, key)
		}
	}
	return changed
}

func ticketIDs(tickets []domain.Ticket) []int64 {
	ids := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	return ids
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
