package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher forwards dispatched events to a NATS subject of the form
// <prefix>.<company_id>.<event subject>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher builds a publisher. A nil conn turns Forward into a no-op.
func NewNATSPublisher(conn *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// SubjectFor returns the subject an event is published on.
func (p *NATSPublisher) SubjectFor(event Event) string {
	return fmt.Sprintf("%s.%d.%s", p.prefix, event.CompanyID, event.Type.Subject())
}

// Forward publishes event on the bus.
func (p *NATSPublisher) Forward(_ context.Context, event Event) error {
	if p.conn == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	subject := p.SubjectFor(event)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("subject", subject),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// Attach subscribes the publisher to every event type on dispatcher.
func (p *NATSPublisher) Attach(dispatcher Dispatcher) {
	if p.conn == nil || dispatcher == nil {
		return
	}
	for _, eventType := range []EventType{EventLeadsAssigned, EventSettingsUpdated, EventRoundRobinReseeded} {
		dispatcher.Subscribe(eventType, p.Forward)
	}
}
