package risk

import (
	"fmt"
	"log/slog"
	"strings"

	"quantguard/internal/decision"
	"quantguard/internal/ledger"
	"quantguard/internal/logger"
	"quantguard/internal/market"
)

const DefaultRSICeiling = 70.0

// Holdings 是拦截器读取的账本接口。
type Holdings interface {
	Contains(symbol string) bool
	Capital() ledger.Capital
}

// Interceptor 把外部建议过一遍本地硬性风控，输出最终动作。
// 它是纯同步过滤器，不会调用建议服务。
type Interceptor struct {
	holdings   Holdings
	rsiCeiling float64
	log        *slog.Logger
}

func NewInterceptor(h Holdings, rsiCeiling float64, log *slog.Logger) *Interceptor {
	if rsiCeiling <= 0 {
		rsiCeiling = DefaultRSICeiling
	}
	return &Interceptor{holdings: h, rsiCeiling: rsiCeiling, log: logger.OrDiscard(log).With("component", "interceptor")}
}

func (i *Interceptor) Intercept(symbol string, advice decision.Decision, price, rsi float64) decision.Decision {
	switch advice.Action {
	case decision.ActionBuy:
		return i.buy(symbol, advice, price, rsi)
	case decision.ActionSell:
		if !i.holdings.Contains(symbol) {
			i.log.Info("sell rejected: not held", "symbol", symbol)
			return decision.Hold(decision.ReasonNoPosition)
		}
		return advice
	case decision.ActionHold, decision.ActionSellAll:
		return advice
	default:
		i.log.Warn("unknown action degraded to hold", "symbol", symbol, "action", advice.Action)
		return decision.Hold(fmt.Sprintf("UNKNOWN_ACTION_%s", strings.ToUpper(string(advice.Action))))
	}
}

func (i *Interceptor) buy(symbol string, advice decision.Decision, price, rsi float64) decision.Decision {
	// 价格或 RSI 不可信时不开仓，NaN 会绕过 >= 比较。
	if !market.ValidPrice(price) || !finite(rsi) {
		i.log.Warn("buy rejected: invalid market data", "symbol", symbol, "price", price, "rsi", rsi)
		return decision.Hold(decision.ReasonInvalidMarketData)
	}
	if rsi >= i.rsiCeiling {
		i.log.Info("buy rejected: rsi overheated", "symbol", symbol, "rsi", rsi, "ceiling", i.rsiCeiling)
		return decision.Hold(fmt.Sprintf("%s (AI wanted BUY): %s", decision.ReasonOverheated, advice.Reason))
	}
	capital := i.holdings.Capital()
	shares := MaxShares(price, capital.TotalCapital, capital.MaxExposureRatio)
	if shares <= 0 {
		i.log.Info("buy rejected: exposure budget", "symbol", symbol, "price", price)
		return decision.Hold(decision.ReasonInsufficientFunds)
	}
	advice.SuggestedVolume = shares
	return advice
}
