package failures

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/news-indexer/backend/internal/logger"
)

// Report describes a reference that reached a terminal failure state.
type Report struct {
	RunID       string    `json:"run_id"`
	Site        string    `json:"site"`
	Location    string    `json:"location"`
	Publication string    `json:"publication"`
	Stage       string    `json:"stage"`
	Error       string    `json:"error"`
	Quarantined bool      `json:"quarantined"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink receives failure reports.
type Sink interface {
	Report(ctx context.Context, r Report) error
	Close() error
}

// NopSink drops every report.
type NopSink struct{}

func (NopSink) Report(context.Context, Report) error { return nil }
func (NopSink) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes reports to a Kafka topic, one JSON message per
// failed reference keyed by its location.
type KafkaSink struct {
	writer   messageWriter
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string, log *slog.Logger) *KafkaSink {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		MaxAttempts: 3,
	})
	return newKafkaSink(writer, 5, time.Second, log)
}

func newKafkaSink(writer messageWriter, attempts int, backoff time.Duration, log *slog.Logger) *KafkaSink {
	if log == nil {
		log = logger.Discard()
	}
	return &KafkaSink{writer: writer, attempts: attempts, backoff: backoff, log: log}
}

// Message renders r as a Kafka message.
func Message(r Report) (kafka.Message, error) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal failure report: %w", err)
	}
	return kafka.Message{
		Key:   []byte(r.Location),
		Value: value,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(r.RunID)},
			{Key: "stage", Value: []byte(r.Stage)},
			{Key: "error", Value: []byte(r.Error)},
			{Key: "timestamp", Value: []byte(r.Timestamp.UTC().Format(time.RFC3339))},
		},
	}, nil
}

// Report writes r, retrying with exponential backoff.
func (s *KafkaSink) Report(ctx context.Context, r Report) error {
	msg, err := Message(r)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if lastErr = s.writer.WriteMessages(ctx, msg); lastErr == nil {
			s.log.Debug("failure report sent",
				slog.String("location", r.Location),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		backoff := time.Duration(1<<uint(attempt)) * s.backoff
		s.log.Warn("failure report write failed, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("write failure report after %d attempts: %w", s.attempts, lastErr)
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
