package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantguard/internal/market"
)

func TestContractMapping(t *testing.T) {
	cfg := Config{SymbolMap: map[string]string{"00700": "tcehy_usdt"}}
	final := cfg.withDefaults()
	assert.Equal(t, "TCEHY_USDT", final.contract("00700"))
	assert.Equal(t, "BTC_USDT", final.contract("btc/usdt"))
	assert.Equal(t, "ETH_USDT", final.contract("eth"))
	assert.Equal(t, "usdt", final.Settle)
}

func candleRows(n int, openSec int64, step int64) string {
	rows := make([]string, 0, n)
	for i := 0; i < n; i++ {
		px := 100 + i
		rows = append(rows, fmt.Sprintf(`{"t":%d,"v":10,"c":"%d","h":"%d","l":"%d","o":"%d","sum":"1000"}`,
			openSec+int64(i)*step, px, px+1, px-1, px))
	}
	return "[" + strings.Join(rows, ",") + "]"
}

func TestFetchHistoryDropsUnclosedBar(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	firstOpen := now.Truncate(time.Hour).Add(-39 * time.Hour).Unix()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/futures/usdt/candlesticks"), r.URL.Path)
		assert.Equal(t, "00700_USDT", r.URL.Query().Get("contract"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candleRows(40, firstOpen, 3600)))
	}))
	defer srv.Close()

	src, err := New(Config{RESTBaseURL: srv.URL})
	require.NoError(t, err)
	src.nowFn = func() time.Time { return now }

	bars, err := src.FetchHistory(context.Background(), "00700", "1h", 40)
	require.NoError(t, err)
	assert.Len(t, bars, 39)
	assert.Equal(t, 138.0, market.Candles(bars).Last().Close)
	assert.Equal(t, bars[0].OpenTime+3600_000-1, bars[0].CloseTime)
}

func TestQuoteFromDailyBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"t":1772323200,"v":5,"c":"200","h":"201","l":"199","o":"199","sum":"1"},` +
			`{"t":1772409600,"v":5,"c":"210","h":"211","l":"200","o":"200","sum":"1"}]`))
	}))
	defer srv.Close()

	src, err := New(Config{RESTBaseURL: srv.URL})
	require.NoError(t, err)
	q, err := src.Quote(context.Background(), "00700")
	require.NoError(t, err)
	assert.Equal(t, "00700", q.Symbol)
	assert.Equal(t, 210.0, q.Price)
	assert.InDelta(t, 5.0, q.PctChange, 1e-9)
}

func TestQuoteEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src, err := New(Config{RESTBaseURL: srv.URL})
	require.NoError(t, err)
	_, err = src.Quote(context.Background(), "00700")
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestParseFloatRejectsNonFinite(t *testing.T) {
	assert.Zero(t, parseFloat("NaN"))
	assert.Zero(t, parseFloat("Inf"))
	assert.Equal(t, 1.5, parseFloat("1.5"))
}
