package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// NotificationService mirrors lifecycle events onto the outbound
// notification queue. Delivery (webhooks, retries) belongs to the external
// dispatcher draining the queue; this adapter only enqueues and never
// reports failure back to the engine.
type NotificationService struct {
	dispatcher events.Dispatcher
	redis      *redis.Client
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, redisClient *redis.Client, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		redis:      redisClient,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every lifecycle event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handleEvent)
	}
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("notification",
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int("actor_user_id", event.Actor.UserID))
	n.enqueue(ctx, event)
	return nil
}

func (n *NotificationService) enqueue(ctx context.Context, event events.Event) {
	if n.redis == nil || strings.TrimSpace(n.cfg.QueueKey) == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("notification marshal failed", zap.Error(err))
		return
	}
	if err := n.redis.LPush(ctx, n.cfg.QueueKey, payload).Err(); err != nil {
		n.logger.Warn("notification enqueue failed",
			zap.String("queue", n.cfg.QueueKey),
			zap.Error(err))
	}
}
