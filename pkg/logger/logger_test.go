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
	mu    sync.Mutex
	topic string
	logs  []AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.logs = append(p.logs, payload.([]AggregatedLogEntry)...)
	return nil
}

func (p *capturePublisher) snapshot() (string, []AggregatedLogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topic, append([]AggregatedLogEntry(nil), p.logs...)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.AddLog("error", "fetch failed", map[string]interface{}{"symbol": "GOLD_OTC"}, "sources.go:10")
	}
	c.AddLog("error", "save failed", nil, "store.go:20")
	c.Flush(context.Background())

	topic, logs := pub.snapshot()
	assert.Equal(t, "logs", topic)
	require.Len(t, logs, 2)
	assert.Equal(t, "fetch failed", logs[0].Message)
	assert.Equal(t, 3, logs[0].Count)
	assert.Equal(t, 1, logs[1].Count)
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	child := l.With(String("component", "test"))
	child.Error("boom", Error(errors.New("bad")), Float64("price", 1.5))
	child.Warn("ignored")
	l.RemoveCollector()

	_, logs := pub.snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, "boom", logs[0].Message)
	assert.Equal(t, "bad", logs[0].Fields["error"])
	assert.Equal(t, 1.5, logs[0].Fields["price"])
}

func TestCollectorReachesEarlierChildren(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	child := l.With(String("component", "early"))

	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})
	child.Error("late attach")
	l.RemoveCollector()

	child.Error("after removal")

	_, logs := pub.snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, "late attach", logs[0].Message)
}

func TestCollectorRecordsFieldValues(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	l.Error("ingest failed",
		Int64("offset", 42),
		Duration("elapsed", 1500*time.Millisecond),
		Strings("symbols", []string{"GOLD_OTC", "USDMXN_OTC"}),
		Error(nil),
	)
	l.RemoveCollector()

	_, logs := pub.snapshot()
	require.Len(t, logs, 1)
	f := logs[0].Fields
	assert.Equal(t, int64(42), f["offset"])
	assert.Equal(t, 1500, f["elapsed"])
	assert.Equal(t, "GOLD_OTC, USDMXN_OTC", f["symbols"])
	assert.Nil(t, f["error"])
	assert.Contains(t, logs[0].Caller, "logger_test.go")
}
