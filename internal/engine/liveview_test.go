package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"coinwatch-go/gateway"
	"coinwatch-go/infrastructure/monitor"
	"coinwatch-go/market"
)

var upgrader = websocket.Upgrader{}

// 按路径区分币种：btc 推 id 1xx，eth 推 id 2xx。
func newTradeStreamServer(t *testing.T, hold chan struct{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		base := int64(100)
		if strings.Contains(r.URL.Path, "ethusdt") {
			base = 200
		}
		for i := int64(0); i < 3; i++ {
			frame := `{"e":"trade","t":` + strconv.FormatInt(base+i, 10) + `,"p":"10.5","q":"2","T":1700000000000,"m":false}`
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		<-hold
	}))
}

func waitLedger(t *testing.T, l *market.Ledger, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for l.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("ledger never reached %d records (have %d)", n, l.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLiveViewSwitchingCoinsClearsLedger(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := newTradeStreamServer(t, hold)
	defer srv.Close()

	conn := &gateway.StreamConnector{
		Endpoint: "ws://" + strings.TrimPrefix(srv.URL, "http://"),
	}
	view := NewLiveView(conn, market.NewLedger(31), nil, nil, nil)

	require.NoError(t, view.Show(context.Background(), "btc"))
	waitLedger(t, view.Ledger(), 3)
	for _, rec := range view.Ledger().Snapshot() {
		require.GreaterOrEqual(t, rec.ID, int64(100))
		require.Less(t, rec.ID, int64(200))
	}

	require.NoError(t, view.Show(context.Background(), "eth"))
	waitLedger(t, view.Ledger(), 3)
	for _, rec := range view.Ledger().Snapshot() {
		require.GreaterOrEqual(t, rec.ID, int64(200), "btc record leaked into eth view")
	}

	view.Hide()
	require.Zero(t, view.Ledger().Len(), "ledger must be empty after hide")
}

func scrapeMetrics(t *testing.T, m *monitor.Monitor) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestLiveViewDialFailureIsNotADisconnect(t *testing.T) {
	mon := monitor.New(monitor.DefaultConfig())
	conn := &gateway.StreamConnector{Endpoint: "ws://127.0.0.1:1"}
	view := NewLiveView(conn, market.NewLedger(31), nil, nil, mon)

	require.Error(t, view.Show(context.Background(), "btc"))
	require.Contains(t, scrapeMetrics(t, mon),
		"coinwatch_engine_stream_disconnects_total 0",
		"a failed dial never had an open subscription to drop")
}

func TestLiveViewTransportDropCountsAsDisconnect(t *testing.T) {
	// Server accepts the upgrade then immediately drops the connection.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.Close()
	}))
	defer srv.Close()

	mon := monitor.New(monitor.DefaultConfig())
	conn := &gateway.StreamConnector{
		Endpoint: "ws://" + strings.TrimPrefix(srv.URL, "http://"),
	}
	view := NewLiveView(conn, market.NewLedger(31), nil, nil, mon)
	require.NoError(t, view.Show(context.Background(), "btc"))

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(scrapeMetrics(t, mon), "coinwatch_engine_stream_disconnects_total 1") {
		if time.Now().After(deadline) {
			t.Fatal("transport drop was not counted as a disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLiveViewHideStopsAppends(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := newTradeStreamServer(t, hold)
	defer srv.Close()

	conn := &gateway.StreamConnector{
		Endpoint: "ws://" + strings.TrimPrefix(srv.URL, "http://"),
	}
	view := NewLiveView(conn, market.NewLedger(31), nil, nil, nil)

	require.NoError(t, view.Show(context.Background(), "btc"))
	waitLedger(t, view.Ledger(), 1)
	view.Hide()

	n := view.Ledger().Len()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, n, view.Ledger().Len(), "appends observed after Hide returned")
}
