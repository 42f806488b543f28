package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/config"
)

// publisher is the part of *nats.Conn the relay needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSRelay forwards dispatcher events to NATS subjects named
// <prefix>.<event_type>.
type NATSRelay struct {
	conn   *nats.Conn
	pub    publisher
	prefix string
	logger *zap.Logger
}

// ConnectNATS dials the configured server.
func ConnectNATS(cfg config.NATSConfig, logger *zap.Logger) (*NATSRelay, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.ReconnectWait(2*time.Second),
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
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to nats", zap.String("url", cfg.URL))
	return &NATSRelay{conn: conn, pub: conn, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

func newRelay(pub publisher, prefix string, logger *zap.Logger) *NATSRelay {
	return &NATSRelay{pub: pub, prefix: prefix, logger: logger}
}

// Subject returns the NATS subject for an event type.
func (r *NATSRelay) Subject(eventType EventType) string {
	return r.prefix + "." + string(eventType)
}

// Handle publishes one event.
func (r *NATSRelay) Handle(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := r.pub.Publish(r.Subject(event.Type), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", event.Type, err)
	}
	return nil
}

// Register subscribes the relay to every event type.
func (r *NATSRelay) Register(d Dispatcher) {
	d.SubscribeAll(r.Handle)
}

// Close flushes pending publishes and closes the connection.
func (r *NATSRelay) Close() {
	if r == nil || r.conn == nil {
		return
	}
	if err := r.conn.Drain(); err != nil {
		r.logger.Warn("nats drain failed", zap.Error(err))
		r.conn.Close()
	}
}
