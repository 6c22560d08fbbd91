// Package events selects and builds the lifecycle event publisher.
package events

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/narwhalmedia/deadarchive/internal/config"
	domainevents "github.com/narwhalmedia/deadarchive/internal/domain/events"
	"github.com/narwhalmedia/deadarchive/internal/infrastructure/events/kafka"
	"github.com/narwhalmedia/deadarchive/internal/infrastructure/events/nats"
)

// LogPublisher writes events to the log only. It is the publisher used
// when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a new log-only publisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

// PublishEvent logs the event at debug level
func (p *LogPublisher) PublishEvent(ctx context.Context, event domainevents.Event) error {
	p.logger.Debug("event",
		zap.String("subject", domainevents.Subject(event)),
		zap.String("aggregate_id", event.AggregateID()),
		zap.String("event_id", event.ID().String()),
	)
	return nil
}

// FanoutPublisher publishes every event to each of its publishers and
// joins their errors.
type FanoutPublisher []domainevents.EventPublisher

// PublishEvent publishes to all publishers
func (f FanoutPublisher) PublishEvent(ctx context.Context, event domainevents.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewPublisher builds the publisher for cfg.Backend. The returned cleanup
// closes any broker connection and is never nil.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (domainevents.EventPublisher, func(), error) {
	logPublisher := NewLogPublisher(logger)

	switch cfg.Backend {
	case "", "none":
		return logPublisher, func() {}, nil

	case "nats":
		client, cleanup, err := nats.NewClient(cfg.NATSURL, "deadarchive", logger)
		if err != nil {
			return nil, nil, err
		}
		return FanoutPublisher{logPublisher, nats.NewPublisher(client, logger)}, cleanup, nil

	case "kafka":
		publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := publisher.Close(); err != nil {
				logger.Error("failed to close kafka publisher", zap.Error(err))
			}
		}
		return FanoutPublisher{logPublisher, publisher}, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unsupported events backend %q", cfg.Backend)
	}
}
