package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "store failed", map[string]interface{}{"asset": "7203.T"}, "risk.go:10")
	}
	c.AddLog("error", "store failed", map[string]interface{}{"asset": "6758.T"}, "risk.go:10")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topics[0])
	counts := map[interface{}]int{}
	for _, e := range pub.batches[0] {
		counts[e.Fields["asset"]] = e.Count
	}
	assert.Equal(t, 3, counts["7203.T"])
	assert.Equal(t, 1, counts["6758.T"])
}

func TestCollectorThresholdFlush(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	c.AddLog("error", "a", nil, "x")
	c.AddLog("error", "b", nil, "x")
	c.Close()

	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)
}

func TestLoggerFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})
	l.Error("run failed", Error(errors.New("boom")))
	l.Warn("ignored")
	l.RemoveCollector()

	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 1)
	assert.Equal(t, "run failed", pub.batches[0][0].Message)
}

func TestCollectorReachesChildLoggers(t *testing.T) {
	pub := &capturePublisher{}
	root := Nop()
	child := root.With(String("component", "scheduler"))

	root.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})
	child.Error("job failed", String("job", "refresh_betas"))
	child.Warn("not collected")
	root.RemoveCollector()

	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 1)
	assert.Equal(t, "job failed", pub.batches[0][0].Message)
	assert.Equal(t, "refresh_betas", pub.batches[0][0].Fields["job"])

	child.Error("after removal")
	assert.Len(t, pub.batches, 1)
}

func TestCollectorKeepsTypedFields(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})
	l.Error("fit failed",
		String("asset", "005930.KS"),
		Float("alpha", 1.5),
		Bool("retried", false),
		Duration("took_ms", 2*time.Second))
	l.RemoveCollector()

	require.Len(t, pub.batches, 1)
	f := pub.batches[0][0].Fields
	assert.Equal(t, "005930.KS", f["asset"])
	assert.Equal(t, 1.5, f["alpha"])
	assert.Equal(t, false, f["retried"])
	assert.Equal(t, 2000, f["took_ms"])
}
