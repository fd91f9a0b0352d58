package binance

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"quantguard/internal/gateway"
	"quantguard/internal/market"
)

const maxHistoryLimit = 1500

// Source 基于 go-binance SDK 实现 K 线与实时报价。
type Source struct {
	cfg    Config
	client *futures.Client
	nowFn  func() time.Time
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient, err := gateway.NewHTTPClient(final.HTTPTimeout, final.RESTProxyURL)
	if err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client, nowFn: time.Now}, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	pair := s.cfg.pair(symbol)
	kls, err := s.client.NewKlinesService().Symbol(pair).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", pair, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	if dur, ok := market.ParseInterval(interval); ok {
		out = market.DropUnclosed(out, dur, s.nowFn().UTC(), market.DefaultKlineGrace)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: binance returned no closed bars for %s", market.ErrNoData, pair)
	}
	return out, nil
}

// Quote 读取 24h ticker 的最新价与涨跌幅（百分比）。
func (s *Source) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	pair := s.cfg.pair(symbol)
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(pair).Do(ctx)
	if err != nil {
		return market.Quote{}, fmt.Errorf("binance ticker %s: %w", pair, err)
	}
	for _, st := range stats {
		if st == nil || !strings.EqualFold(st.Symbol, pair) {
			continue
		}
		price := parseFloat(st.LastPrice)
		if price <= 0 {
			break
		}
		at := s.nowFn()
		if st.CloseTime > 0 {
			at = time.UnixMilli(st.CloseTime)
		}
		return market.Quote{
			Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
			Price:     price,
			PctChange: parseFloat(st.PriceChangePercent),
			At:        at,
		}, nil
	}
	return market.Quote{}, fmt.Errorf("%w: no ticker for %s", market.ErrNoData, pair)
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
