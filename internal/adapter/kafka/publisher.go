package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crime-district-report/internal/config"
	"github.com/couchcryptid/crime-district-report/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per report row to a Kafka topic.
// It implements pipeline.Loader.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured report topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaReportTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// LoadReport serializes every report row and publishes them in a single
// WriteMessages call, keyed by district.
func (p *Publisher) LoadReport(ctx context.Context, report domain.Report) error {
	if len(report.Rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Rows))
	for i := range report.Rows {
		msg, err := serializeToMessage(report.Rows[i], report)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish report rows: %w", err)
	}
	p.logger.Info("report published", "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a ReportRow into a Kafka message carrying the
// run metadata of its report as headers.
func serializeToMessage(row domain.ReportRow, report domain.Report) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.District),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "district", Value: []byte(row.District)},
			{Key: "run_id", Value: []byte(report.RunID.String())},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
