package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// HistoryRecorder appends per-field change log entries after a mutation
// commits. Failures are logged, never propagated: the change log must not
// fail or roll back the ticket mutation it describes.
type HistoryRecorder struct {
	history repository.HistoryRepository
	logger  *zap.Logger
}

// NewHistoryRecorder constructs the recorder.
func NewHistoryRecorder(history repository.HistoryRepository, logger *zap.Logger) *HistoryRecorder {
	return &HistoryRecorder{history: history, logger: logger}
}

// Append writes one entry for the given action.
func (h *HistoryRecorder) Append(ctx context.Context, ticketID int64, actor domain.CallerIdentity, action domain.TicketAction, oldValue, newValue map[string]any) {
	if h == nil || h.history == nil {
		return
	}
	actorID := actor.UserID
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ActorUserID: &actorID,
		Action:      action,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := h.history.Append(ctx, entry); err != nil {
		h.logger.Warn("history append failed",
			zap.Int64("ticket_id", ticketID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// ListByTicket exposes the change log for API consumers.
func (h *HistoryRecorder) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.TicketHistory, error) {
	if h == nil || h.history == nil {
		return []domain.TicketHistory{}, nil
	}
	return h.history.ListByTicket(ctx, ticketID, limit, offset)
}
