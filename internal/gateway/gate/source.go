package gate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"

	"quantguard/internal/gateway"
	"quantguard/internal/market"
)

const (
	defaultGateREST     = "https://api.gateio.ws/api/v4"
	gateMaxHistoryLimit = 2000
)

// Source 通过 Gate 永续合约 REST 接口提供 K 线与报价。
type Source struct {
	cfg   Config
	rest  *gateapi.APIClient
	nowFn func() time.Time
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	restClient, err := newRESTClient(final)
	if err != nil {
		return nil, err
	}
	return &Source{cfg: final, rest: restClient, nowFn: time.Now}, nil
}

func newRESTClient(cfg Config) (*gateapi.APIClient, error) {
	httpClient, err := gateway.NewHTTPClient(cfg.HTTPTimeout, cfg.RESTProxyURL)
	if err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}
	conf := gateapi.NewConfiguration()
	conf.BasePath = cfg.RESTBaseURL
	conf.HTTPClient = httpClient
	return gateapi.NewAPIClient(conf), nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > gateMaxHistoryLimit {
		limit = gateMaxHistoryLimit
	}
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	contract := s.cfg.contract(symbol)
	out, err := s.candles(ctx, contract, interval, limit)
	if err != nil {
		return nil, err
	}
	if dur, ok := market.ParseInterval(interval); ok {
		out = market.DropUnclosed(out, dur, s.nowFn().UTC(), market.DefaultKlineGrace)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: gate returned no closed bars for %s", market.ErrNoData, contract)
	}
	return out, nil
}

// Quote 取最近两根日线：未收盘那根的收盘价即最新价，涨跌幅相对前一日收盘。
func (s *Source) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	contract := s.cfg.contract(symbol)
	bars, err := s.candles(ctx, contract, "1d", 2)
	if err != nil {
		return market.Quote{}, err
	}
	if len(bars) == 0 {
		return market.Quote{}, fmt.Errorf("%w: no candles for %s", market.ErrNoData, contract)
	}
	last := bars[len(bars)-1]
	if last.Close <= 0 {
		return market.Quote{}, fmt.Errorf("%w: invalid price for %s", market.ErrNoData, contract)
	}
	pct := 0.0
	if len(bars) > 1 && bars[0].Close > 0 {
		pct = (last.Close - bars[0].Close) / bars[0].Close * 100
	}
	return market.Quote{
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Price:     last.Close,
		PctChange: pct,
		At:        s.nowFn(),
	}, nil
}

func (s *Source) candles(ctx context.Context, contract, interval string, limit int) ([]market.Candle, error) {
	opts := &gateapi.ListFuturesCandlesticksOpts{
		Limit:    optional.NewInt32(int32(limit)),
		Interval: optional.NewString(interval),
	}
	kls, _, err := s.rest.FuturesApi.ListFuturesCandlesticks(ctx, s.cfg.Settle, contract, opts)
	if err != nil {
		return nil, fmt.Errorf("gate candlesticks %s: %w", contract, err)
	}
	dur, hasDur := market.ParseInterval(interval)
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		openTime := int64(kl.T * 1000)
		closeTime := openTime
		if hasDur {
			closeTime = openTime + dur.Milliseconds() - 1
		}
		out = append(out, market.Candle{
			OpenTime:  openTime,
			CloseTime: closeTime,
			Open:      parseFloat(kl.O),
			High:      parseFloat(kl.H),
			Low:       parseFloat(kl.L),
			Close:     parseFloat(kl.C),
			Volume:    parseFloat(kl.Sum),
		})
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
