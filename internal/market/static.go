package market

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// StaticSource 生成确定性的合成 K 线与报价，用于离线演练和测试。
type StaticSource struct {
	mu     sync.Mutex
	prices map[string]float64
	quotes map[string]Quote
	nowFn  func() time.Time
}

func NewStaticSource(base map[string]float64) *StaticSource {
	prices := make(map[string]float64, len(base))
	for k, v := range base {
		prices[strings.ToUpper(k)] = v
	}
	return &StaticSource{prices: prices, quotes: map[string]Quote{}, nowFn: time.Now}
}

// SetQuote 固定 symbol 接下来的报价。
func (s *StaticSource) SetQuote(symbol string, price, pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sym := strings.ToUpper(symbol)
	s.quotes[sym] = Quote{Symbol: sym, Price: price, PctChange: pct}
	if _, ok := s.prices[sym]; !ok {
		s.prices[sym] = price
	}
}

func (s *StaticSource) base(symbol string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	return p, ok && p > 0
}

func (s *StaticSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, ok := s.base(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: static source has no %s", ErrNoData, symbol)
	}
	if limit <= 0 {
		limit = 120
	}
	step := time.Hour
	if d, ok := ParseInterval(interval); ok {
		step = d
	}
	end := s.nowFn().Truncate(step)
	out := make([]Candle, 0, limit)
	for i := 0; i < limit; i++ {
		// 缓慢振荡的正弦走势，振幅 3%
		px := base * (1 + 0.03*math.Sin(float64(i)/6))
		open := end.Add(-time.Duration(limit-i) * step)
		out = append(out, Candle{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(step).UnixMilli() - 1,
			Open:      px,
			High:      px * 1.002,
			Low:       px * 0.998,
			Close:     px,
			Volume:    1000,
		})
	}
	return out, nil
}

func (s *StaticSource) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}
	sym := strings.ToUpper(symbol)
	s.mu.Lock()
	q, pinned := s.quotes[sym]
	s.mu.Unlock()
	if pinned {
		q.At = s.nowFn()
		return q, nil
	}
	base, ok := s.base(sym)
	if !ok {
		return Quote{}, fmt.Errorf("%w: static source has no %s", ErrNoData, sym)
	}
	return Quote{Symbol: sym, Price: base, At: s.nowFn()}, nil
}
