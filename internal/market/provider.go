package market

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNoData 表示数据源暂时没有可用数据，调用方应放弃本轮。
var ErrNoData = errors.New("market: no data")

// ValidPrice 判断价格可用：有限且为正。NaN 与 ±Inf 一律视为无效。
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}

// Quote 是 tick 循环使用的轻量实时价格。
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	PctChange float64   `json:"pct_change"`
	At        time.Time `json:"at"`
}

// CandleSource 提供历史 K 线。
type CandleSource interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// QuoteSource 提供实时报价。
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// DataProvider 是引擎对行情数据的全部需求。
type DataProvider interface {
	QuoteSource
	Snapshot(ctx context.Context, symbol string) (Snapshot, error)
}

// SentimentProvider 返回标的的短文本片段，空列表不是错误。
type SentimentProvider interface {
	Headlines(ctx context.Context, symbol string) ([]string, error)
}

// NoSentiment 总是返回空。
type NoSentiment struct{}

func (NoSentiment) Headlines(context.Context, string) ([]string, error) { return nil, nil }

// IndicatorProvider 基于 K 线源构造快照，报价委托给报价源。
type IndicatorProvider struct {
	Candles  CandleSource
	Quotes   QuoteSource
	Interval string
	Limit    int
}

func NewIndicatorProvider(candles CandleSource, quotes QuoteSource, interval string, limit int) *IndicatorProvider {
	if interval == "" {
		interval = "1h"
	}
	if limit <= 0 {
		limit = 120
	}
	return &IndicatorProvider{Candles: candles, Quotes: quotes, Interval: interval, Limit: limit}
}

func (p *IndicatorProvider) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	bars, err := p.Candles.FetchHistory(ctx, symbol, p.Interval, p.Limit)
	if err != nil {
		return Snapshot{}, err
	}
	return BuildSnapshot(symbol, p.Interval, bars)
}

func (p *IndicatorProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	return p.Quotes.Quote(ctx, symbol)
}
