package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher sends CloudEvents to NATS subjects named
// "<prefix>.<routingKey>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.SugaredLogger
}

// NewNATS connects to NATS, retrying in the background if the server is not
// up yet.
func NewNATS(url, prefix string, logger *zap.SugaredLogger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("exposure-scanner"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warnw("Disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infow("Reconnected to NATS", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Infow("Connected to NATS", "url", url, "subject_prefix", prefix)

	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject a routing key is published on.
func (p *NATSPublisher) Subject(routingKey string) string {
	if p.prefix == "" {
		return routingKey
	}
	return p.prefix + "." + routingKey
}

// Publish implements Publisher. NATS buffers writes, so ctx is only checked
// before the message is handed over.
func (p *NATSPublisher) Publish(ctx context.Context, event CloudEvent, routingKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.Subject(routingKey)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debugw("Event published",
		"type", event.Type,
		"id", event.ID,
		"subject", subject,
	)

	return nil
}

// IsConnected reports whether the connection is currently up.
func (p *NATSPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
