// Package publisher forwards scanner events to a message broker as CloudEvents.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/exposure-scanner/autoscan/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	eventSource     = "/services/exposure-scanner"
	eventTypePrefix = "io.exposurescanner."
	publishTimeout  = 5 * time.Second
)

// CloudEvent represents the CloudEvents 1.0 specification structure.
type CloudEvent struct {
	SpecVersion     string `json:"specversion"`
	Type            string `json:"type"`
	Source          string `json:"source"`
	ID              string `json:"id"`
	Time            string `json:"time"`
	DataContentType string `json:"datacontenttype"`
	Data            any    `json:"data"`
}

// NewEvent wraps data in a CloudEvent of the given short type, e.g.
// "cycle_completed" becomes "io.exposurescanner.cycle_completed".
func NewEvent(eventType string, at time.Time, data any) CloudEvent {
	return CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventTypePrefix + eventType,
		Source:          eventSource,
		ID:              uuid.New().String(),
		Time:            at.UTC().Format(time.RFC3339),
		DataContentType: "application/json",
		Data:            data,
	}
}

// Publisher delivers CloudEvents to a broker under a routing key.
type Publisher interface {
	Publish(ctx context.Context, event CloudEvent, routingKey string) error
	Close() error
}

// Nop discards every event. It is used when no transport is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, CloudEvent, string) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// NewFromConfig connects the transport named by cfg.
func NewFromConfig(cfg config.EventsConfig, logger *zap.SugaredLogger) (Publisher, error) {
	switch cfg.Transport {
	case "", config.TransportNone:
		logger.Infow("Event forwarding disabled")
		return Nop{}, nil
	case config.TransportRabbitMQ:
		return NewAMQP(cfg.URL, cfg.Exchange, logger)
	case config.TransportNATS:
		return NewNATS(cfg.URL, cfg.SubjectPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
	}
}
