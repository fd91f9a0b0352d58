package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantguard/internal/decision"
	"quantguard/internal/ledger"
)

var capital = ledger.Capital{TotalCapital: 100000, MaxExposureRatio: 0.10}

func newLedger(t *testing.T, seed map[string]ledger.Position) (*ledger.Ledger, *ledger.MemoryStore) {
	t.Helper()
	store := &ledger.MemoryStore{Loaded: seed}
	l, err := ledger.New(store, capital, nil)
	require.NoError(t, err)
	return l, store
}

func TestMaxSharesScenario(t *testing.T) {
	assert.Equal(t, 35, MaxShares(280, 100000, 0.10))
	assert.Equal(t, 40, MaxShares(250, 100000, 0.10))
	assert.Equal(t, 0, MaxShares(20000, 100000, 0.10))
	assert.Equal(t, 0, MaxShares(0, 100000, 0.10))
	assert.Equal(t, 0, MaxShares(-3, 100000, 0.10))
}

func TestMaxSharesMonotonic(t *testing.T) {
	prev := MaxShares(0.5, 100000, 0.1)
	for price := 0.5; price < 15000; price *= 1.37 {
		got := MaxShares(price, 100000, 0.1)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, prev, "price=%v", price)
		prev = got
	}
}

func TestEvaluateHardStopBoundary(t *testing.T) {
	rules := DefaultStopRules()
	pos := ledger.Position{Symbol: "00700", CostPrice: 280, Volume: 35, HighestPrice: 280}

	res := rules.Evaluate(pos, 257.6)
	assert.Equal(t, StopHard, res.Kind)
	assert.InDelta(t, 257.6, res.Threshold, 1e-9)

	assert.False(t, rules.Evaluate(pos, 257.61).Triggered())
}

func TestEvaluateTrailingScenario(t *testing.T) {
	rules := DefaultStopRules()
	pos := ledger.Position{Symbol: "00700", CostPrice: 280, Volume: 35, HighestPrice: 310}

	res := rules.Evaluate(pos, 294)
	assert.Equal(t, StopTrailing, res.Kind)
	assert.InDelta(t, 0.0516, res.Drawdown, 1e-4)

	assert.False(t, rules.Evaluate(pos, 295).Triggered(), "pullback below 5%")
}

func TestEvaluateTrailingNeedsActivation(t *testing.T) {
	rules := DefaultStopRules()
	// peak 307 is below cost*1.10 = 308, so a deep pullback alone never trails.
	pos := ledger.Position{Symbol: "A", CostPrice: 280, Volume: 1, HighestPrice: 307}
	res := rules.Evaluate(pos, 260)
	assert.False(t, res.Triggered())

	res = rules.Evaluate(pos, 257)
	assert.Equal(t, StopHard, res.Kind)
}

func TestEvaluateTrailingBeforeHard(t *testing.T) {
	rules := DefaultStopRules()
	pos := ledger.Position{Symbol: "A", CostPrice: 100, Volume: 1, HighestPrice: 200}
	assert.Equal(t, StopTrailing, rules.Evaluate(pos, 50).Kind)
}

func TestStopEngineRaisesHighWaterWithoutPersistOnLowerTick(t *testing.T) {
	l, store := newLedger(t, map[string]ledger.Position{
		"00700": {CostPrice: 280, Volume: 35, HighestPrice: 280},
	})
	eng := NewStopEngine(l, DefaultStopRules(), nil)

	_, fired := eng.Check("00700", 275)
	assert.False(t, fired)
	assert.Equal(t, 0, store.Saves)

	_, fired = eng.Check("00700", 310)
	assert.False(t, fired)
	assert.Equal(t, 1, store.Saves)
	pos, _ := l.Get("00700")
	assert.Equal(t, 310.0, pos.HighestPrice)

	res, fired := eng.Check("00700", 294)
	assert.True(t, fired)
	assert.Equal(t, StopTrailing, res.Kind)
	assert.True(t, l.Contains("00700"), "Check never closes")
}

func TestStopEngineCheckAndClose(t *testing.T) {
	l, store := newLedger(t, map[string]ledger.Position{
		"00700": {CostPrice: 280, Volume: 35, HighestPrice: 280},
	})
	eng := NewStopEngine(l, DefaultStopRules(), nil)

	res, fired := eng.CheckAndClose("00700", 257.6)
	require.True(t, fired)
	assert.Equal(t, StopHard, res.Kind)
	assert.Equal(t, 35, res.Position.Volume)
	assert.False(t, l.Contains("00700"))
	assert.Empty(t, store.Saved)

	d := res.Decision()
	assert.Equal(t, decision.ActionSellAll, d.Action)
	assert.Contains(t, d.Reason, decision.ReasonHardStop)
}

func TestStopEngineUnknownSymbol(t *testing.T) {
	l, store := newLedger(t, nil)
	eng := NewStopEngine(l, DefaultStopRules(), nil)
	_, fired := eng.CheckAndClose("NONE", 1)
	assert.False(t, fired)
	assert.Equal(t, 0, store.Saves)
}

func TestMaxSharesRejectsNonFinite(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Zero(t, MaxShares(math.Inf(1), 100000, 0.1))
		assert.Zero(t, MaxShares(math.NaN(), 100000, 0.1))
		assert.Zero(t, MaxShares(math.Inf(-1), 100000, 0.1))
		assert.Zero(t, MaxShares(280, math.Inf(1), 0.1))
		assert.Zero(t, MaxShares(280, 100000, math.NaN()))
	})
}

func TestStopEngineIgnoresNonFinitePrice(t *testing.T) {
	l, store := newLedger(t, map[string]ledger.Position{
		"00700": {CostPrice: 280, Volume: 35, HighestPrice: 300},
	})
	eng := NewStopEngine(l, DefaultStopRules(), nil)

	for _, px := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, fired := eng.CheckAndClose("00700", px)
		assert.False(t, fired, "price %v", px)
	}
	pos, held := l.Get("00700")
	require.True(t, held)
	assert.Equal(t, 300.0, pos.HighestPrice)
	assert.Equal(t, 0, store.Saves)

	res := DefaultStopRules().Evaluate(pos, math.NaN())
	assert.False(t, res.Triggered())
}

func TestInterceptBuyRejectsNonFiniteInputs(t *testing.T) {
	l, _ := newLedger(t, nil)
	ic := NewInterceptor(l, DefaultRSICeiling, nil)
	buy := decision.Decision{Action: decision.ActionBuy, Reason: "breakout"}

	assert.NotPanics(t, func() {
		got := ic.Intercept("00700", buy, math.Inf(1), 50)
		assert.Equal(t, decision.Hold(decision.ReasonInvalidMarketData), got)
	})
	got := ic.Intercept("00700", buy, math.NaN(), 50)
	assert.Equal(t, decision.ActionHold, got.Action)
	got = ic.Intercept("00700", buy, 280, math.NaN())
	assert.Equal(t, decision.Hold(decision.ReasonInvalidMarketData), got)
}

func TestInterceptBuy(t *testing.T) {
	l, _ := newLedger(t, nil)
	ic := NewInterceptor(l, DefaultRSICeiling, nil)

	got := ic.Intercept("00700", decision.Decision{Action: decision.ActionBuy, Reason: "breakout"}, 280, 55)
	assert.Equal(t, decision.ActionBuy, got.Action)
	assert.Equal(t, 35, got.SuggestedVolume)
	assert.Equal(t, "breakout", got.Reason)

	got = ic.Intercept("00700", decision.Decision{Action: decision.ActionBuy, Reason: "breakout"}, 280, 70)
	assert.Equal(t, decision.ActionHold, got.Action)
	assert.Contains(t, got.Reason, decision.ReasonOverheated)
	assert.Zero(t, got.SuggestedVolume)

	got = ic.Intercept("00700", decision.Decision{Action: decision.ActionBuy}, 20000, 30)
	assert.Equal(t, decision.Hold(decision.ReasonInsufficientFunds), got)
}

func TestInterceptOverheatedAlwaysHolds(t *testing.T) {
	l, _ := newLedger(t, nil)
	ic := NewInterceptor(l, DefaultRSICeiling, nil)
	for _, rsi := range []float64{70, 70.01, 85, 100} {
		for _, price := range []float64{1, 280, 1e6} {
			got := ic.Intercept("X", decision.Decision{Action: decision.ActionBuy}, price, rsi)
			assert.Equal(t, decision.ActionHold, got.Action, "rsi=%v price=%v", rsi, price)
		}
	}
}

func TestInterceptSell(t *testing.T) {
	l, _ := newLedger(t, map[string]ledger.Position{
		"00700": {CostPrice: 280, Volume: 35, HighestPrice: 280},
	})
	ic := NewInterceptor(l, DefaultRSICeiling, nil)

	got := ic.Intercept("09988", decision.Decision{Action: decision.ActionSell, Reason: "weak"}, 80, 40)
	assert.Equal(t, decision.Hold(decision.ReasonNoPosition), got)

	got = ic.Intercept("00700", decision.Decision{Action: decision.ActionSell, Reason: "weak"}, 280, 40)
	assert.Equal(t, decision.ActionSell, got.Action)
}

func TestInterceptPassThrough(t *testing.T) {
	l, _ := newLedger(t, nil)
	ic := NewInterceptor(l, DefaultRSICeiling, nil)

	hold := decision.Hold("wait")
	assert.Equal(t, hold, ic.Intercept("A", hold, 10, 90))

	sellAll := decision.Decision{Action: decision.ActionSellAll, Reason: decision.ReasonHardStop}
	assert.Equal(t, sellAll, ic.Intercept("A", sellAll, 10, 90))

	got := ic.Intercept("A", decision.Decision{Action: "SHORT"}, 10, 10)
	assert.Equal(t, decision.ActionHold, got.Action)
}
