package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdash/scalpbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startStreamServer runs a websocket server that waits for the subscribe
// message and then sends the given raw JSON frames.
func startStreamServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub subscribeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStream_DeliversTicksAndOrderUpdates(t *testing.T) {
	srv := startStreamServer(t,
		`{"type":"tick","symbol":"BTC/USD","price":42000.5,"timestamp":1700000000000}`,
		`{"type":"heartbeat"}`,
		`{"type":"order_update","event":"fill","order":{"id":"o-1","symbol":"BTC/USD","side":"buy","quantity":0.1,"filled_price":42001,"filled_quantity":0.1}}`,
	)

	ticks := make(chan domain.PriceTick, 1)
	updates := make(chan domain.OrderUpdate, 1)
	stream := NewStream(wsURL(srv), []string{"BTC/USD"},
		func(tk domain.PriceTick) { ticks <- tk },
		func(u domain.OrderUpdate) { updates <- u },
		testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(ctx) }()

	select {
	case tk := <-ticks:
		assert.Equal(t, "BTC/USD", tk.Symbol)
		assert.Equal(t, 42000.5, tk.Price)
		assert.Equal(t, int64(1700000000000), tk.Timestamp.UnixMilli())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tick")
	}

	select {
	case u := <-updates:
		assert.Equal(t, domain.OrderEventFill, u.Event)
		assert.Equal(t, "o-1", u.Order.ID)
		assert.Equal(t, domain.OrderSideBuy, u.Order.Side)
		assert.Equal(t, 42001.0, u.Order.FilledPrice)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for order update")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
}

func TestStream_NoSymbols(t *testing.T) {
	stream := NewStream("ws://unused", nil, nil, nil, testLogger())
	require.NoError(t, stream.Run(context.Background()))
}

func TestStream_CloseStops(t *testing.T) {
	srv := startStreamServer(t)
	stream := NewStream(wsURL(srv), []string{"X"}, nil, nil, testLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	stream.Close()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop on Close")
	}
}
