// Package nats publishes lifecycle events to NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	domainevents "github.com/narwhalmedia/deadarchive/internal/domain/events"
)

// Publisher implements the EventPublisher interface using NATS JetStream
type Publisher struct {
	js      jetstream.JetStream
	timeout time.Duration
	logger  *zap.Logger
}

// NewPublisher creates a new NATS event publisher
func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	return &Publisher{
		js:      client.JetStream(),
		timeout: 5 * time.Second,
		logger:  logger.Named("publisher"),
	}
}

// PublishEvent publishes an event on its subject, deduplicated by event ID
func (p *Publisher) PublishEvent(ctx context.Context, event domainevents.Event) error {
	subject := domainevents.Subject(event)

	data, err := json.Marshal(domainevents.NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ack, err := p.js.Publish(pubCtx, subject, data, jetstream.WithMsgID(event.ID().String()))
	if err != nil {
		p.logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("event_id", event.ID().String()),
			zap.String("subject", subject),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		zap.String("event_id", event.ID().String()),
		zap.String("subject", subject),
		zap.Uint64("sequence", ack.Sequence),
		zap.String("stream", ack.Stream),
	)
	return nil
}
