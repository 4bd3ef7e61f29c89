package quotestream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed is a websocket server that records subscriptions and then sends
// the given frames.
func feed(t *testing.T, frames ...string) (*httptest.Server, chan string, chan string) {
	t.Helper()
	subs := make(chan string, 8)
	tokens := make(chan string, 1)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var msg map[string]string
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		subs <- msg["symbol"]
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv, subs, tokens
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientStreamsQuotes(t *testing.T) {
	srv, subs, tokens := feed(t,
		`{"type":"ping"}`,
		`not json`,
		`{"type":"trade","data":[{"s":"gold_otc","p":2350.5,"t":1714564800000},{"s":"","p":1,"t":1}]}`,
	)

	c := New(wsURL(srv), "secret", []string{"GOLD_OTC"}, time.Millisecond, time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "secret", <-tokens)
	assert.Equal(t, "GOLD_OTC", <-subs)

	quotes, _ := c.Read(ctx)
	select {
	case q := <-quotes:
		require.NotNil(t, q)
		assert.Equal(t, "GOLD_OTC", q.Symbol)
		assert.Equal(t, 2350.5, q.Price)
		assert.Equal(t, Source, q.Source)
		assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), q.Timestamp)
	case <-ctx.Done():
		t.Fatal("no quote received")
	}

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}

func TestClientReadReportsDisconnect(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := New(wsURL(srv), "", nil, time.Millisecond, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	quotes, errs := c.Read(ctx)
	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-ctx.Done():
		t.Fatal("no error reported")
	}
	_, open := <-quotes
	assert.False(t, open)
}

func TestReadWithoutConnect(t *testing.T) {
	c := New("ws://127.0.0.1:1", "", nil, 0, 0, nil)
	_, errs := c.Read(context.Background())
	assert.ErrorIs(t, <-errs, errNotConnected)
	assert.ErrorIs(t, c.Subscribe(context.Background()), errNotConnected)
}
