package kafka

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MessageWriter is the part of *kafka.Writer the producer relies on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MeasureProducer mirrors accepted time-series points to a Kafka topic, one
// message per point keyed by metric key.
type MeasureProducer struct {
	writer MessageWriter
	topic  string
}

// NewMeasureProducer returns nil when no broker is configured.
func NewMeasureProducer(lc fx.Lifecycle, cfg *config.Config) *MeasureProducer {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		log.Debug().Msg("Kafka brokers or topic not configured, measure mirror disabled")
		return nil
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
	})
	p := NewMeasureProducerWithWriter(writer, cfg.Kafka.Topic)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing Kafka producer")
			return p.Close()
		},
	})
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka producer initialized")
	return p
}

func NewMeasureProducerWithWriter(w MessageWriter, topic string) *MeasureProducer {
	return &MeasureProducer{writer: w, topic: topic}
}

func (p *MeasureProducer) Name() string {
	return "kafka:" + p.topic
}

func (p *MeasureProducer) Record(ctx context.Context, points []model.TimeSeriesPoint) error {
	messages := Messages(points)
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		log.Error().Err(err).Int("message_count", len(messages)).Str("topic", p.topic).Msg("Failed to write measures to Kafka")
		return err
	}
	log.Debug().Int("message_count", len(messages)).Str("topic", p.topic).Msg("Measures mirrored to Kafka")
	return nil
}

func (p *MeasureProducer) Close() error {
	return p.writer.Close()
}

// Messages encodes points as Kafka messages. Points that cannot be encoded
// are skipped.
func Messages(points []model.TimeSeriesPoint) []kafka.Message {
	messages := make([]kafka.Message, 0, len(points))
	for _, point := range points {
		value, err := json.Marshal(point)
		if err != nil {
			log.Error().Err(err).Str("metric", point.MetricKey).Msg("Failed to marshal measure for Kafka")
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(point.MetricKey),
			Value: value,
		})
	}
	return messages
}
