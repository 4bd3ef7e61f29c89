package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	cfg := &ClientConfig{Port: 9000}
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithDatabase("signalcast"),
		WithCredentials("reader", "secret"),
		WithAsyncInsert(true, false),
		WithMaxExecutionTime(90 * time.Second),
		WithTimeouts(2*time.Second, 20*time.Second, 0),
	} {
		opt(cfg)
	}

	o := options(cfg)
	assert.Equal(t, []string{"ch.local:9000"}, o.Addr)
	assert.Equal(t, ch.Native, o.Protocol)
	assert.Equal(t, "signalcast", o.Auth.Database)
	assert.Equal(t, "reader", o.Auth.Username)
	assert.Equal(t, 90, o.Settings["max_execution_time"])
	assert.Equal(t, 1, o.Settings["async_insert"])
	assert.Equal(t, 0, o.Settings["wait_for_async_insert"])
	assert.Equal(t, 2*time.Second, o.DialTimeout)
	assert.Equal(t, 20*time.Second, o.ReadTimeout)
}

func TestOptionsHTTP(t *testing.T) {
	cfg := &ClientConfig{Host: "ch.local", Port: 8123}
	WithHTTP(true)(cfg)

	o := options(cfg)
	assert.Equal(t, ch.HTTP, o.Protocol)
	assert.Empty(t, o.Settings)
}
