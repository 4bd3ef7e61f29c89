package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer(WithConsumerGroupID("signalcast-bars"))
	assert.Error(t, err)
}

func TestConsumerAutoOffsetReset(t *testing.T) {
	cases := map[string]int64{
		"":         kafka.FirstOffset,
		"earliest": kafka.FirstOffset,
		"latest":   kafka.LastOffset,
	}
	for reset, want := range cases {
		c, err := NewConsumer(
			WithConsumerBrokers([]string{"localhost:9092"}),
			WithConsumerAutoOffsetReset(reset),
		)
		require.NoError(t, err)
		assert.Equal(t, want, c.cfg.StartOffset, reset)
	}
}
