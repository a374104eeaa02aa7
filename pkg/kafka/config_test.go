package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerConfigWriter(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithBrokers([]string{"b1:9092", "b2:9092"}),
		WithCompression("zstd"),
		WithBatchSize(0),
		WithTimeouts(0, 2*time.Second),
		WithKeyOrdering(true),
	} {
		opt(cfg)
	}
	require.NoError(t, cfg.validate())

	w := cfg.writer()
	assert.IsType(t, &kafka.Hash{}, w.Balancer, "asset keys pin to one partition")
	assert.Equal(t, kafka.Zstd, w.Compression)
	assert.Equal(t, 100, w.BatchSize, "zero keeps the default")
	assert.Equal(t, 10*time.Second, w.WriteTimeout)
	assert.Equal(t, 2*time.Second, w.ReadTimeout)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}

func TestProducerConfigValidate(t *testing.T) {
	cfg := defaultProducerConfig()
	assert.Error(t, cfg.validate(), "brokers are required")

	WithBrokers([]string{"b1:9092"})(cfg)
	WithRequiredAcks(2)(cfg)
	assert.Error(t, cfg.validate())

	_, err := NewProducer()
	assert.Error(t, err)
}

func TestProducerConfigDefaultBalancer(t *testing.T) {
	cfg := defaultProducerConfig()
	WithBrokers([]string{"b1:9092"})(cfg)
	assert.IsType(t, &kafka.LeastBytes{}, cfg.writer().Balancer)
}
