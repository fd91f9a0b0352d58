package risk

import (
	"fmt"
	"log/slog"

	"quantguard/internal/decision"
	"quantguard/internal/ledger"
	"quantguard/internal/logger"
	"quantguard/internal/market"
)

// StopRules 保存止损阈值，均为小数比例。
type StopRules struct {
	// TrailingActivation：highest >= cost * (1 + TrailingActivation) 后移动止盈生效。
	TrailingActivation float64
	// TrailingPullback：生效后 (highest - price) / highest >= TrailingPullback 时触发。
	TrailingPullback float64
	// HardStop：price <= cost * (1 - HardStop) 时触发。
	HardStop float64
}

func DefaultStopRules() StopRules {
	return StopRules{TrailingActivation: 0.10, TrailingPullback: 0.05, HardStop: 0.08}
}

func (r StopRules) Validate() error {
	if r.TrailingActivation < 0 {
		return fmt.Errorf("risk: trailing_activation_pct must be >= 0")
	}
	if r.TrailingPullback <= 0 || r.TrailingPullback >= 1 {
		return fmt.Errorf("risk: trailing_pullback_pct must be in (0,1)")
	}
	if r.HardStop <= 0 || r.HardStop >= 1 {
		return fmt.Errorf("risk: hard_stop_pct must be in (0,1)")
	}
	return nil
}

type StopKind string

const (
	StopNone     StopKind = ""
	StopTrailing StopKind = "trailing"
	StopHard     StopKind = "hard"
)

// StopResult 描述一次止损检查。Position 为检查时（含最高价更新后）的持仓。
type StopResult struct {
	Symbol    string
	Kind      StopKind
	Price     float64
	Position  ledger.Position
	Drawdown  float64
	Threshold float64
}

func (r StopResult) Triggered() bool { return r.Kind != StopNone }

// Decision 把触发的止损转换为对应的 SELL_ALL 指令。
func (r StopResult) Decision() decision.Decision {
	switch r.Kind {
	case StopTrailing:
		return decision.Decision{
			Action: decision.ActionSellAll,
			Reason: fmt.Sprintf("%s: drawdown %.2f%% from high %.4f", decision.ReasonTrailingStop, r.Drawdown*100, r.Position.HighestPrice),
		}
	case StopHard:
		return decision.Decision{
			Action: decision.ActionSellAll,
			Reason: fmt.Sprintf("%s: price %.4f <= %.4f", decision.ReasonHardStop, r.Price, r.Threshold),
		}
	default:
		return decision.Hold("")
	}
}

// Evaluate 是纯函数止损判断。price 创新高时 pos.HighestPrice 应已包含 price。
// 先判断移动止盈，再判断硬止损。
func (r StopRules) Evaluate(pos ledger.Position, price float64) StopResult {
	res := StopResult{Symbol: pos.Symbol, Price: price, Position: pos}
	if !market.ValidPrice(price) || !market.ValidPrice(pos.CostPrice) {
		return res
	}
	high := dec(pos.HighestPrice)
	if high.Cmp(dec(price)) < 0 {
		high = dec(price)
	}
	px := dec(price)
	if high.IsPositive() {
		res.Drawdown = toFloat(high.Sub(px).Div(high))
	}

	activation := scaled(pos.CostPrice, r.TrailingActivation)
	if high.Cmp(activation) >= 0 {
		pullback := high.Mul(dec(r.TrailingPullback))
		if high.Sub(px).Cmp(pullback) >= 0 {
			res.Kind = StopTrailing
			res.Threshold = toFloat(high.Sub(pullback))
			return res
		}
	}

	floor := scaled(pos.CostPrice, -r.HardStop)
	if px.Cmp(floor) <= 0 {
		res.Kind = StopHard
		res.Threshold = toFloat(floor)
	}
	return res
}

// StopEngine 对账本执行 StopRules。最高价更新、判断与可选的平仓
// 在同一个账本临界区内完成。
type StopEngine struct {
	ledger *ledger.Ledger
	rules  StopRules
	log    *slog.Logger
}

func NewStopEngine(l *ledger.Ledger, rules StopRules, log *slog.Logger) *StopEngine {
	return &StopEngine{ledger: l, rules: rules, log: logger.OrDiscard(log).With("component", "stops")}
}

func (e *StopEngine) Rules() StopRules { return e.rules }

// Check 推进最高价并报告是否触发止损，从不平仓。
func (e *StopEngine) Check(symbol string, price float64) (StopResult, bool) {
	return e.run(symbol, price, false)
}

// CheckAndClose 在 Check 触发时，于释放账本锁之前无条件平仓。
func (e *StopEngine) CheckAndClose(symbol string, price float64) (StopResult, bool) {
	return e.run(symbol, price, true)
}

func (e *StopEngine) run(symbol string, price float64, closeOnTrigger bool) (StopResult, bool) {
	if !market.ValidPrice(price) {
		e.log.Warn("stop check skipped: invalid price", "symbol", symbol, "price", price)
		return StopResult{Symbol: symbol, Price: price}, false
	}
	var res StopResult
	_, held := e.ledger.Apply(symbol, func(pos ledger.Position, held bool) ledger.Mutation {
		if !held {
			return ledger.Mutation{}
		}
		if price > pos.HighestPrice {
			pos.HighestPrice = price
		}
		res = e.rules.Evaluate(pos, price)
		return ledger.Mutation{HighestPrice: pos.HighestPrice, Remove: closeOnTrigger && res.Triggered()}
	})
	if !held {
		e.log.Warn("stop check on unknown position", "symbol", symbol)
		return StopResult{Symbol: symbol, Price: price}, false
	}
	if res.Triggered() {
		e.log.Warn("stop triggered",
			"symbol", res.Symbol,
			"kind", res.Kind,
			"price", price,
			"cost", res.Position.CostPrice,
			"highest", res.Position.HighestPrice,
			"closed", closeOnTrigger,
		)
	}
	return res, res.Triggered()
}
