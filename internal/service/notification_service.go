package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

// NotificationService turns domain events into notifications for the
// counterpart of each change. Delivery is stubbed to logs.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     loggerOrNop(logger),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketReviewed, n.handleTicketReviewed)
	n.dispatcher.Subscribe(events.EventAssistanceRequested, n.handleAssistance)
	n.dispatcher.Subscribe(events.EventAssistanceAccepted, n.handleAssistance)
	n.dispatcher.Subscribe(events.EventAssistanceRejected, n.handleAssistance)
	n.dispatcher.Subscribe(events.EventAssistanceCancelled, n.handleAssistance)
	n.dispatcher.Subscribe(events.EventChatMessageAppended, n.handleMessageAppended)
	n.dispatcher.Subscribe(events.EventTechnicianEnabled, n.handleTechnicianEnabled)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", n.fields(event)...)
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketReviewed(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketReviewed", n.fields(event)...)
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAssistance(ctx context.Context, event events.Event) error {
	n.logger.Info("AssistanceRequestChanged", n.fields(event)...)
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleMessageAppended(ctx context.Context, event events.Event) error {
	// Messages to the bot have no one to notify.
	if event.RecipientID == nil {
		return nil
	}
	n.logger.Info("ChatMessageAppended", n.fields(event)...)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTechnicianEnabled(ctx context.Context, event events.Event) error {
	n.logger.Info("TechnicianEnabled", n.fields(event)...)
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) fields(event events.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload),
	}
	if event.TicketID != "" {
		fields = append(fields, zap.String("ticket_id", event.TicketID))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.RecipientID != nil {
		fields = append(fields, zap.String("recipient_id", *event.RecipientID))
	}
	return fields
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || event.RecipientID == nil {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient_id", *event.RecipientID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("key", event.Key()),
		zap.String("event_type", string(event.Type)))
}
