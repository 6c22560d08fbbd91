package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTail_DeliversMessagesWithSubject(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{"deadarchive.events": {0}})
	pc := consumer.ExpectConsumePartition("deadarchive.events", 0, sarama.OffsetNewest)
	pc.YieldMessage(&sarama.ConsumerMessage{
		Topic: "deadarchive.events",
		Value: []byte(`{"event_type":"DownloadCompleted"}`),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("subject"), Value: []byte("download.DownloadCompleted")},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu       sync.Mutex
		subjects []string
	)
	done := make(chan error, 1)
	go func() {
		done <- tail(ctx, consumer, "deadarchive.events", zaptest.NewLogger(t), func(subject string, data []byte) error {
			mu.Lock()
			subjects = append(subjects, subject)
			mu.Unlock()
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(subjects) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"download.DownloadCompleted"}, subjects)
}
