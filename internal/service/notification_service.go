package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-desk/internal/config"
	"github.com/spec-kit/guild-desk/internal/events"
)

// NotificationService forwards lifecycle events to the configured
// notification endpoints. Delivery is fire-and-forget: failures are
// logged and never surface to the transition that emitted the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every lifecycle event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketClaimed,
		events.EventTicketReleased,
		events.EventTicketClosed,
		events.EventTicketCancelled,
		events.EventTicketReopened,
		events.EventTicketLockToggled,
		events.EventTicketPriorityChanged,
		events.EventTicketNoteAdded,
		events.EventTicketArchived,
		events.EventTicketExported,
	} {
		n.dispatcher.Subscribe(eventType, n.handleEvent)
	}
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket event",
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("guild_id", event.GuildID),
		zap.String("actor_id", event.ActorID))
	n.sendWebhookNotification(ctx, event)
	return nil
}

// sendWebhookNotification hands the event to the external logging
// endpoint. Actual delivery belongs to the gateway side; this service
// only records the intent.
func (n *NotificationService) sendWebhookNotification(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("webhook notification",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
