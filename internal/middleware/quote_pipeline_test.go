package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu   sync.Mutex
	fail bool
	got  []*models.Quote
}

func (s *sink) Process(_ context.Context, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("down")
	}
	s.got = append(s.got, q)
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func tick(sym string, price float64) *models.Quote {
	return &models.Quote{Symbol: sym, Price: price, Timestamp: time.Now()}
}

func TestPipelineValidatesAndThrottles(t *testing.T) {
	s := &sink{}
	p := NewQuotePipeline(s, metrics.Nop{}, WithMaxRPS(1))
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, nil))
	assert.Error(t, p.Process(ctx, tick("", 1)))
	assert.Error(t, p.Process(ctx, tick("GOLD_OTC", 0)))

	require.NoError(t, p.Process(ctx, tick("GOLD_OTC", 1)))
	require.NoError(t, p.Process(ctx, tick("GOLD_OTC", 2)))
	require.NoError(t, p.Process(ctx, tick("USDMXN_OTC", 3)))
	assert.Equal(t, 2, s.count(), "second GOLD tick within a second is dropped")
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	s := &sink{fail: true}
	p := NewQuotePipeline(s, metrics.Nop{}, WithMaxRPS(0), WithBufferSize(4))
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, tick("GOLD_OTC", 1)))
	assert.Equal(t, 1, p.Buffered())

	s.mu.Lock()
	s.fail = false
	s.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()
	require.Eventually(t, func() bool { return s.count() == 1 }, time.Second, 5*time.Millisecond)
}
