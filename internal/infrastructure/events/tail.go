package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/infrastructure/events/kafka"
	"github.com/narwhalmedia/deadarchive/internal/infrastructure/events/nats"
)

// Tail follows lifecycle events on the configured broker until ctx is done.
// filter is a NATS subject pattern such as "download.>"; the Kafka backend
// reads the whole topic.
func Tail(ctx context.Context, cfg config.EventsConfig, filter string, logger *zap.Logger, handler func(subject string, data []byte) error) error {
	switch cfg.Backend {
	case "nats":
		client, cleanup, err := nats.NewClient(cfg.NATSURL, "deadarchive-tail", logger)
		if err != nil {
			return err
		}
		defer cleanup()
		return client.Subscribe(ctx, filter, handler)
	case "kafka":
		return kafka.Tail(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, logger, handler)
	default:
		return fmt.Errorf("events backend %q cannot be tailed", cfg.Backend)
	}
}
