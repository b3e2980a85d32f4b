package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-distribution/internal/config"
	"github.com/spec-kit/lead-distribution/internal/events"
)

const webhookTimeout = 5 * time.Second

// NotificationService tells staff about leads they received.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventLeadsAssigned, n.handleLeadsAssigned)
}

func (n *NotificationService) handleLeadsAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LeadsAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("LeadsAssigned",
		zap.Int64("tenant_id", event.CompanyID),
		zap.Int64("staff_id", payload.StaffID),
		zap.Int("leads", len(payload.LeadIDs)),
		zap.String("strategy", string(payload.Strategy)))
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) sendWebhook(_ context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}

	status, _, errs := fiber.Post(url).
		JSON(event).
		Timeout(webhookTimeout).
		Bytes()
	if err := errors.Join(errs...); err != nil {
		n.logger.Warn("webhook delivery failed", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	if status >= fiber.StatusBadRequest {
		n.logger.Warn("webhook rejected event", zap.String("event_id", event.ID), zap.Int("status", status))
		return fmt.Errorf("webhook returned status %d", status)
	}
	n.logger.Debug("webhook delivered",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
	return nil
}
