package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/snow-removal-info-service/internal/config"
	"github.com/couchcryptid/snow-removal-info-service/internal/domain"
)

// Writer produces snow reports to a Kafka topic.
// It implements relay.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes reports in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, reports []domain.SnowReport) error {
	if len(reports) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(reports))
	for i := range reports {
		msg, err := serializeToMessage(reports[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d reports: %w", len(msgs), err)
	}
	w.logger.Debug("reports published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a SnowReport into a Kafka message keyed by its ID.
func serializeToMessage(report domain.SnowReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snow report: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "area", Value: []byte(report.Area)},
	}
	if report.CreatedAt != nil {
		headers = append(headers, kafkago.Header{
			Key:   "created_at",
			Value: []byte(report.CreatedAt.UTC().Format(time.RFC3339)),
		})
	}
	return kafkago.Message{
		Key:     []byte(strconv.FormatInt(report.ID, 10)),
		Value:   data,
		Headers: headers,
	}, nil
}
