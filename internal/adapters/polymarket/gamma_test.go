package polymarket_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/adapters/polymarket"
)

func newTestClient(srv *httptest.Server, limit int) *polymarket.Client {
	return polymarket.NewClient(srv.URL, limit)
}

func TestFetchMarkets_Success(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/gamma_markets.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		assert.Equal(t, "volume24hr", r.URL.Query().Get("order"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	markets, err := newTestClient(srv, 50).FetchMarkets(context.Background())
	require.NoError(t, err)
	// el resuelto y el multi-outcome se descartan
	require.Len(t, markets, 2)

	m := markets[0]
	assert.Equal(t, "0xabc123", m.ID)
	assert.Equal(t, "Economics", m.Category)
	assert.Equal(t, time.Date(2026, 6, 17, 0, 0, 0, 0, time.UTC), m.EndDate)
	assert.True(t, decimal.RequireFromString("0.42").Equal(m.YesPrice()))
	assert.True(t, decimal.RequireFromString("0.01").Equal(m.Spread))
	assert.True(t, decimal.RequireFromString("95210.4").Equal(m.Volume24h))
	assert.Equal(t, "token_yes_001", m.YesToken().TokenID)
	assert.Equal(t, "token_no_001", m.NoToken().TokenID)

	// Gamma listó NO primero: se normaliza YES al índice 0
	btc := markets[1]
	assert.Equal(t, "Yes", btc.YesToken().Outcome)
	assert.Equal(t, "token_yes_002", btc.YesToken().TokenID)
	assert.True(t, decimal.RequireFromString("0.13").Equal(btc.YesPrice()))
	assert.True(t, btc.Spread.IsZero())
}

func TestFetchMarkets_Paginates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		n := 100
		if offset >= 100 {
			n = 30
		}
		page := make([]map[string]any, 0, n)
		for i := range n {
			page = append(page, map[string]any{
				"conditionId":   fmt.Sprintf("0x%d", offset+i),
				"outcomes":      `["Yes","No"]`,
				"outcomePrices": `["0.5","0.5"]`,
				"active":        true,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	markets, err := newTestClient(srv, 500).FetchMarkets(context.Background())
	require.NoError(t, err)
	assert.Len(t, markets, 130)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "0x129", markets[129].ID)

	calls.Store(0)
	markets, err = newTestClient(srv, 40).FetchMarkets(context.Background())
	require.NoError(t, err)
	assert.Len(t, markets, 40)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchMarkets_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 10).FetchMarkets(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, polymarket.ErrNoMarkets))
}

func TestFetchMarkets_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad offset"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 10).FetchMarkets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client error 400")
	assert.False(t, errors.Is(err, polymarket.ErrNoMarkets))

	var se *polymarket.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Body, "bad offset")
}

func TestFetchMarkets_RetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "polyagent/1.0", r.Header.Get("User-Agent"))
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"conditionId":"0x1","outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"0.3\",\"0.7\"]","active":true}]`))
	}))
	defer srv.Close()

	markets, err := newTestClient(srv, 10).FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchMarkets_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"conditionId":"0x1","outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"0.3\",\"0.7\"]","active":true}]`))
	}))
	defer srv.Close()

	markets, err := newTestClient(srv, 10).FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchMarkets_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv, 10).FetchMarkets(ctx)
	require.Error(t, err)
}
