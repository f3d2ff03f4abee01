//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snow-removal-info-service/internal/adapter/kafka"
	"github.com/couchcryptid/snow-removal-info-service/internal/config"
	"github.com/couchcryptid/snow-removal-info-service/internal/domain"
	"github.com/couchcryptid/snow-removal-info-service/internal/observability"
	"github.com/couchcryptid/snow-removal-info-service/internal/relay"
)

const testTopic = "test-snow-reports"

// publishedMessage holds a deserialized message read from the report topic.
type publishedMessage struct {
	Report  domain.SnowReport
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from report topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var report domain.SnowReport
	require.NoError(t, json.Unmarshal(msg.Value, &report), "unmarshal report message")

	return publishedMessage{Report: report, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestWriterPublishesReport verifies the Kafka adapter writes key, value and headers.
func TestWriterPublishesReport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	report, err := domain.NewReport("駅前地区", "2024-01-15T05:00", "2024-01-15T07:00")
	require.NoError(t, err)
	report.ID = 7

	require.NoError(t, writer.LoadBatch(ctx, []domain.SnowReport{report}))

	pm := readPublished(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "7", pm.Key)
	assert.Equal(t, "駅前地区", pm.Headers["area"])
	_, err = time.Parse(time.RFC3339, pm.Headers["created_at"])
	assert.NoError(t, err, "created_at should be valid RFC3339")
	assert.Equal(t, report.StartTime, pm.Report.StartTime)
	assert.Equal(t, report.EndTime, pm.Report.EndTime)
}

// TestRelayEndToEnd stores reports, runs the relay against a real broker and
// checks every report arrives once and the outbox drains.
func TestRelayEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	s := openStore(t)
	areas := domain.Districts()
	for i, area := range areas {
		start := fmt.Sprintf("2024-01-%02d 04:00", i+1)
		end := fmt.Sprintf("2024-01-%02d 08:00", i+1)
		r, err := domain.NewReport(area, start, end)
		require.NoError(t, err)
		_, err = s.Create(ctx, r)
		require.NoError(t, err)
	}

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	rl := relay.New(s, writer, discardLogger(), metrics, 5, time.Second)

	relayCtx, relayCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- rl.Run(relayCtx) }()

	consumer := newConsumer(t, broker)
	seen := make(map[string]string, len(areas))
	for len(seen) < len(areas) {
		pm := readPublished(ctx, t, consumer)
		seen[pm.Key] = pm.Report.Area
	}

	require.Eventually(t, func() bool {
		n, err := s.PendingCount()
		return err == nil && n == 0
	}, 10*time.Second, 100*time.Millisecond, "outbox should drain")
	assert.NoError(t, rl.CheckReadiness(ctx))

	relayCancel()
	require.NoError(t, <-errCh)

	for i, area := range areas {
		assert.Equal(t, area, seen[strconv.Itoa(i+1)])
	}

	// Nothing is published twice.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further messages")
}
