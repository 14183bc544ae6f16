package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/kafka"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
)

type fakeWriter struct {
	written []kafkago.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func point(key string, value float64) model.TimeSeriesPoint {
	return model.TimeSeriesPoint{
		MetricKey: key,
		Tags:      map[string]string{"entity": "org:a"},
		Measures:  []model.MeasureValue{{Date: time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC), Value: value}},
	}
}

func TestMessages(t *testing.T) {
	msgs := kafka.Messages([]model.TimeSeriesPoint{point("sonar-ncloc", 1200), point("sonar-coverage", 81.5)})
	require.Len(t, msgs, 2)
	assert.Equal(t, "sonar-ncloc", string(msgs[0].Key))

	var decoded model.TimeSeriesPoint
	require.NoError(t, json.Unmarshal(msgs[1].Value, &decoded))
	assert.Equal(t, point("sonar-coverage", 81.5), decoded)
}

func TestMeasureProducer_Record(t *testing.T) {
	w := &fakeWriter{}
	p := kafka.NewMeasureProducerWithWriter(w, "komea_measures")

	require.NoError(t, p.Record(context.Background(), nil))
	assert.Empty(t, w.written)

	require.NoError(t, p.Record(context.Background(), []model.TimeSeriesPoint{point("sonar-ncloc", 1)}))
	assert.Len(t, w.written, 1)
	assert.Equal(t, "kafka:komea_measures", p.Name())

	w.err = errors.New("broker down")
	assert.Error(t, p.Record(context.Background(), []model.TimeSeriesPoint{point("sonar-ncloc", 2)}))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewMeasureProducer_Disabled(t *testing.T) {
	cfg := &config.Config{Kafka: config.KafkaConfig{Topic: "komea_measures"}}
	assert.Nil(t, kafka.NewMeasureProducer(fxtest.NewLifecycle(t), cfg))
}
