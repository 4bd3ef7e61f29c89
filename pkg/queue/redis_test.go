package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SignalCast/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepPayload struct {
	Symbol string `json:"symbol"`
}

type countingJob struct {
	calls   atomic.Int32
	failFor int32
	last    atomic.Value
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Type() string { return "sweep" }

func (j *countingJob) Handle(_ context.Context, payload json.RawMessage) error {
	n := j.calls.Add(1)
	p, err := Decode[sweepPayload](payload)
	if err != nil {
		return err
	}
	j.last.Store(p.Symbol)
	if n <= j.failFor {
		return errors.New("transient")
	}
	return nil
}

func newQueue(t *testing.T, job Job, cfg *QueueConfig) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(logger.Nop(), cfg, client, WithKeyPrefix("test:queue"))
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q, mr
}

func TestQueueDeliversMessage(t *testing.T) {
	job := &countingJob{}
	q, _ := newQueue(t, job, &QueueConfig{Workers: 1})

	require.NoError(t, q.PublishMessage(context.Background(), "sweep", sweepPayload{Symbol: "GOLD_OTC"}))

	assert.Eventually(t, func() bool { return job.calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "GOLD_OTC", job.last.Load())
}

func TestQueueRejectsUnknownType(t *testing.T) {
	q, _ := newQueue(t, &countingJob{}, &QueueConfig{Workers: 1})
	assert.Error(t, q.Enqueue(context.Background(), "nope", nil))
}

func TestQueueRetriesThenDeadLetters(t *testing.T) {
	job := &countingJob{failFor: 100}
	q, mr := newQueue(t, job, &QueueConfig{
		Workers:    1,
		RetryLimit: 1,
		RetryDelay: time.Millisecond,
		RetryPoll:  50 * time.Millisecond,
	})

	require.NoError(t, q.Enqueue(context.Background(), "sweep", sweepPayload{Symbol: "X"}))

	assert.Eventually(t, func() bool {
		items, err := mr.List("test:queue:dlq")
		return err == nil && len(items) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(2), job.calls.Load())
}

func TestDecodeEmptyPayload(t *testing.T) {
	p, err := Decode[sweepPayload](nil)
	require.NoError(t, err)
	assert.Equal(t, "", p.Symbol)

	_, err = Decode[sweepPayload](json.RawMessage("{"))
	assert.Error(t, err)
}
