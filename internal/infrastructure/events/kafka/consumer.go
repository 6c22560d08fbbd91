package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Tail delivers every new message on topic to handler until ctx is done.
// Each partition is read from its newest offset; no consumer group offsets
// are committed.
func Tail(ctx context.Context, brokers []string, topic string, logger *zap.Logger, handler func(subject string, data []byte) error) error {
	config := sarama.NewConfig()
	config.ClientID = "deadarchive-tail"
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return fmt.Errorf("creating consumer: %w", err)
	}
	defer consumer.Close()

	return tail(ctx, consumer, topic, logger.Named("kafka"), handler)
}

func tail(ctx context.Context, consumer sarama.Consumer, topic string, logger *zap.Logger, handler func(string, []byte) error) error {
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("listing partitions: %w", err)
	}

	var wg sync.WaitGroup
	for _, partition := range partitions {
		pc, err := consumer.ConsumePartition(topic, partition, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("consuming partition %d: %w", partition, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer pc.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					if err := handler(subjectOf(msg), msg.Value); err != nil {
						logger.Error("failed to handle message",
							zap.Int32("partition", msg.Partition),
							zap.Int64("offset", msg.Offset),
							zap.Error(err),
						)
					}
				case cerr, ok := <-pc.Errors():
					if ok {
						logger.Warn("consumer error", zap.Error(cerr))
					}
				}
			}
		}()
	}

	wg.Wait()
	return nil
}

func subjectOf(msg *sarama.ConsumerMessage) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == "subject" {
			return string(h.Value)
		}
	}
	return msg.Topic
}
