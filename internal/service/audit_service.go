package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// AuditService records who changed what. It subscribes to the dispatcher
// and writes structured audit lines; failures never reach the engine.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to every lifecycle event.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		a.dispatcher.Subscribe(eventType, a.recordChange)
	}
}

func (a *AuditService) recordChange(ctx context.Context, event events.Event) error {
	a.logger.Info("change recorded",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int("actor_user_id", event.Actor.UserID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload))
	return nil
}
