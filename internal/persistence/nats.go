package persistence

import (
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-distribution/internal/config"
)

// NATS wraps the optional event bus connection.
type NATS struct {
	Conn *nats.Conn
}

// NewNATS connects when a URL is configured. Without one it returns a NATS
// with a nil Conn and events stay in-process.
func NewNATS(cfg config.NATSConfig, logger *zap.Logger) (*NATS, error) {
	if cfg.URL == "" {
		logger.Info("NATS_URL not provided; assignment events stay in-process")
		return &NATS{}, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("lead-distribution"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("connected to nats")
	return &NATS{Conn: conn}, nil
}

// Close drains pending publishes and closes the connection.
func (n *NATS) Close() {
	if n != nil && n.Conn != nil {
		_ = n.Conn.Drain()
	}
}
