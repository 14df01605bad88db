package status_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/adapters/status"
	"github.com/alejandrodnm/polyagent/internal/domain"
)

func snapshot(balance string) domain.PortfolioStats {
	return domain.PortfolioStats{
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Balance:        decimal.RequireFromString(balance),
		InitialBalance: decimal.NewFromInt(100),
		OpenPositions:  2,
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg, &got))
	return got
}

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := status.NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(snapshot("95.5"))

	for _, conn := range []*websocket.Conn{a, b} {
		got := readSnapshot(t, conn)
		assert.Equal(t, "95.5", got["balance"])
		assert.EqualValues(t, 2, got["open_positions"])
	}
}

func TestHub_NewClientGetsLatestSnapshot(t *testing.T) {
	hub := status.NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	hub.Publish(snapshot("101"))

	conn := dial(t, srv)
	got := readSnapshot(t, conn)
	assert.Equal(t, "101", got["balance"])
}

func TestHub_StatusEndpoint(t *testing.T) {
	hub := status.NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	hub.Publish(snapshot("88.25"))

	resp, err = http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"balance":"88.25"`)
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	hub := status.NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// publishing with no clients must not block
	hub.Publish(snapshot("90"))
}
