package market

import (
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"
)

const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// minBars is the shortest history that yields a settled MACD signal line.
const minBars = macdSlow + macdSignal

// Snapshot 是一次深度分析的行情输入，字段名即发送给建议服务的键名。
type Snapshot struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Price    float64   `json:"close"`
	RSI      float64   `json:"RSI_14"`
	DIF      float64   `json:"MACD_DIF"`
	DEA      float64   `json:"MACD_DEA"`
	MACDHist float64   `json:"MACD_HIST"`
	Bars     int       `json:"bars"`
	AsOf     time.Time `json:"as_of"`
}

// BuildSnapshot 根据最新 K 线计算 RSI(14) 与 MACD(12,26,9)。
// 柱值采用 2*(DIF-DEA) 口径。
func BuildSnapshot(symbol, interval string, bars []Candle) (Snapshot, error) {
	if len(bars) < minBars {
		return Snapshot{}, fmt.Errorf("%w: %s needs %d bars, got %d", ErrNoData, symbol, minBars, len(bars))
	}
	cs := Candles(bars)
	closes := cs.Closes()
	last := cs.Last()
	if !ValidPrice(last.Close) {
		return Snapshot{}, fmt.Errorf("%w: %s last close %v", ErrNoData, symbol, last.Close)
	}
	rsi := talib.Rsi(closes, rsiPeriod)
	dif, dea, _ := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	snap := Snapshot{
		Symbol:   symbol,
		Interval: interval,
		Price:    last.Close,
		RSI:      round4(lastValue(rsi)),
		DIF:      round4(lastValue(dif)),
		DEA:      round4(lastValue(dea)),
		Bars:     len(bars),
		AsOf:     last.Time().UTC(),
	}
	snap.MACDHist = round4(2 * (lastValue(dif) - lastValue(dea)))
	return snap, nil
}

func lastValue(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
