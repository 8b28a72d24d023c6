package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-wave-etl/internal/config"
	"github.com/couchcryptid/storm-wave-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the loader uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes analysis windows to a Kafka topic, one message per window.
// It implements pipeline.WindowLoader.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// LoadWindows serializes the windows in frame order and publishes them in
// batches of the configured size.
func (w *Writer) LoadWindows(ctx context.Context, a domain.Alignment) error {
	if len(a.Windows) == 0 {
		return nil
	}
	size := w.batchSize
	if size <= 0 {
		size = len(a.Windows)
	}
	for start := 0; start < len(a.Windows); start += size {
		end := min(start+size, len(a.Windows))
		msgs := make([]kafkago.Message, 0, end-start)
		for _, win := range a.Windows[start:end] {
			msg, err := serializeToMessage(domain.NewWindowMessage(win))
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish windows %d-%d: %w", start, end-1, err)
		}
		w.logger.Debug("windows published", "count", len(msgs))
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a window into a Kafka message keyed by its frame
// time so all publications of the same frame land on one partition.
func serializeToMessage(msg domain.WindowMessage) (kafkago.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize window: %w", err)
	}
	frame := msg.Frame.UTC().Format(time.RFC3339)
	return kafkago.Message{
		Key:   []byte(frame),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "frame", Value: []byte(frame)},
			{Key: "points", Value: []byte(strconv.Itoa(len(msg.Points)))},
		},
	}, nil
}

// DecodeWindowMessage is the inverse of the published form, for consumers.
func DecodeWindowMessage(m kafkago.Message) (domain.WindowMessage, error) {
	var msg domain.WindowMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return domain.WindowMessage{}, fmt.Errorf("decode window %q: %w", m.Key, err)
	}
	return msg, nil
}
