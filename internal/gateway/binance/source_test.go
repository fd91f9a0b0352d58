package binance

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

func TestPairMapping(t *testing.T) {
	cfg := Config{SymbolSuffix: "usdt", SymbolMap: map[string]string{"00700": "tcehyusdt"}}
	final := cfg.withDefaults()
	assert.Equal(t, "TCEHYUSDT", final.pair("00700"))
	assert.Equal(t, "BTCUSDT", final.pair("btc/usdt"))
	assert.Equal(t, "ETHUSDT", final.pair("ETH"))
}

func klineRows(n int, openMs int64) string {
	rows := make([]string, 0, n)
	for i := 0; i < n; i++ {
		open := openMs + int64(i)*3600_000
		px := 100 + i
		rows = append(rows, fmt.Sprintf(`[%d,"%d","%d","%d","%d","10",%d,"1000",5,"5","500","0"]`,
			open, px, px+1, px-1, px, open+3600_000-1))
	}
	return "[" + strings.Join(rows, ",") + "]"
}

func TestFetchHistoryDropsUnclosedBar(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	firstOpen := now.Truncate(time.Hour).Add(-39 * time.Hour).UnixMilli()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "00700USDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(klineRows(40, firstOpen)))
	}))
	defer srv.Close()

	src, err := New(Config{RESTBaseURL: srv.URL, SymbolSuffix: "USDT"})
	require.NoError(t, err)
	src.nowFn = func() time.Time { return now }

	bars, err := src.FetchHistory(context.Background(), "00700", "1h", 40)
	require.NoError(t, err)
	assert.Len(t, bars, 39, "bar opened at 10:00 is still forming")
	assert.Equal(t, 138.0, market.Candles(bars).Last().Close)
}

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ticker/24hr", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbol":"00700USDT","priceChange":"5","priceChangePercent":"1.82","lastPrice":"280.40","closeTime":1772445600000}`))
	}))
	defer srv.Close()

	src, err := New(Config{RESTBaseURL: srv.URL, SymbolSuffix: "USDT"})
	require.NoError(t, err)
	q, err := src.Quote(context.Background(), "00700")
	require.NoError(t, err)
	assert.Equal(t, "00700", q.Symbol)
	assert.Equal(t, 280.40, q.Price)
	assert.Equal(t, 1.82, q.PctChange)
}

func TestParseFloatRejectsNonFinite(t *testing.T) {
	assert.Equal(t, 280.4, parseFloat(" 280.4 "))
	assert.Zero(t, parseFloat("NaN"))
	assert.Zero(t, parseFloat("+Inf"))
	assert.Zero(t, parseFloat("-Inf"))
	assert.Zero(t, parseFloat("bad"))
}

func TestQuoteRejectsNonFiniteTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"00700USDT","priceChangePercent":"1","lastPrice":"NaN","closeTime":1772445600000}`))
	}))
	defer srv.Close()

	src, err := New(Config{RESTBaseURL: srv.URL, SymbolSuffix: "USDT"})
	require.NoError(t, err)
	_, err = src.Quote(context.Background(), "00700")
	assert.ErrorIs(t, err, market.ErrNoData)
}
