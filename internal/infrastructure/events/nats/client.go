package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Stream names and the subjects they capture
const (
	DownloadStream = "DOWNLOAD_EVENTS"
	CatalogStream  = "CATALOG_EVENTS"
)

// Client wraps NATS and JetStream connections
type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

// NewClient connects to url and makes sure the event streams exist
func NewClient(url, clientName string, logger *zap.Logger) (*Client, func(), error) {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &Client{
		nc:     nc,
		js:     js,
		logger: logger.Named("nats"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.initializeStreams(ctx); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	cleanup := func() {
		if err := nc.Drain(); err != nil {
			logger.Error("failed to drain NATS connection", zap.Error(err))
		}
		nc.Close()
	}

	client.logger.Info("NATS client initialized", zap.String("url", url))
	return client, cleanup, nil
}

func (c *Client) initializeStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        DownloadStream,
			Description: "Track download lifecycle events",
			Subjects:    []string{"download.>"},
			MaxAge:      7 * 24 * time.Hour,
		},
		{
			Name:        CatalogStream,
			Description: "Show aggregation, eviction and favorite events",
			Subjects:    []string{"catalog.>"},
			MaxAge:      30 * 24 * time.Hour,
		},
	}

	for _, cfg := range streams {
		cfg.Retention = jetstream.LimitsPolicy
		cfg.MaxConsumers = -1
		cfg.Replicas = 1
		cfg.Storage = jetstream.FileStorage
		cfg.Discard = jetstream.DiscardOld
		cfg.MaxMsgs = -1
		cfg.MaxBytes = -1

		if _, err := c.js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
		}
	}

	c.logger.Info("JetStream streams initialized")
	return nil
}

// JetStream returns the JetStream context
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Health checks the connection and JetStream availability
func (c *Client) Health(ctx context.Context) error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("NATS client is not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := c.js.AccountInfo(ctx); err != nil {
		return fmt.Errorf("failed to get JetStream account info: %w", err)
	}
	return nil
}

// Subscribe delivers messages on subject to handler until ctx is done. The
// consumer is ephemeral; every call sees messages published after it starts.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(subject string, data []byte) error) error {
	stream := streamFor(subject)
	if stream == "" {
		return fmt.Errorf("no stream captures subject %q", subject)
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		FilterSubject:     subject,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		MaxDeliver:        3,
		AckWait:           30 * time.Second,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(msg.Subject(), msg.Data()); err != nil {
			c.logger.Error("failed to handle message",
				zap.String("subject", msg.Subject()),
				zap.Error(err),
			)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	<-ctx.Done()
	consumeCtx.Stop()
	return nil
}

func streamFor(subject string) string {
	switch {
	case strings.HasPrefix(subject, "download."):
		return DownloadStream
	case strings.HasPrefix(subject, "catalog."):
		return CatalogStream
	}
	return ""
}
