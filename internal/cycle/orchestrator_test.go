package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quantguard/internal/advisory"
	"quantguard/internal/decision"
	"quantguard/internal/gateway/notifier"
	"quantguard/internal/ledger"
	"quantguard/internal/market"
	"quantguard/internal/risk"
	"quantguard/internal/store/journal"
)

type mockAdvisor struct{ mock.Mock }

func (m *mockAdvisor) Decide(ctx context.Context, req advisory.Request) advisory.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(advisory.Result)
}

type mockMarket struct{ mock.Mock }

func (m *mockMarket) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(market.Quote), args.Error(1)
}

func (m *mockMarket) Snapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(market.Snapshot), args.Error(1)
}

type failingSentiment struct{}

func (failingSentiment) Headlines(context.Context, string) ([]string, error) {
	return nil, errors.New("feed down")
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notifier.StructuredMessage
}

func (r *recordingNotifier) Notify(msg notifier.StructuredMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Title)
	}
	return out
}

type memoryRecorder struct {
	mu        sync.Mutex
	decisions []journal.DecisionRecord
	trades    []journal.TradeRecord
	err       error
}

func (m *memoryRecorder) RecordDecision(_ context.Context, rec *journal.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, *rec)
	return m.err
}

func (m *memoryRecorder) RecordTrade(_ context.Context, rec *journal.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, *rec)
	return m.err
}

type fixture struct {
	orch     *Orchestrator
	ledger   *ledger.Ledger
	advisor  *mockAdvisor
	market   *mockMarket
	notifier *recordingNotifier
	journal  *memoryRecorder
}

func newFixture(t *testing.T, sentiment market.SentimentProvider) *fixture {
	t.Helper()
	l, err := ledger.New(&ledger.MemoryStore{}, ledger.Capital{TotalCapital: 100000, MaxExposureRatio: 0.10}, nil)
	require.NoError(t, err)
	f := &fixture{
		ledger:   l,
		advisor:  &mockAdvisor{},
		market:   &mockMarket{},
		notifier: &recordingNotifier{},
		journal:  &memoryRecorder{},
	}
	f.orch = New(Deps{
		Ledger:      l,
		Stops:       risk.NewStopEngine(l, risk.DefaultStopRules(), nil),
		Interceptor: risk.NewInterceptor(l, risk.DefaultRSICeiling, nil),
		Advisor:     f.advisor,
		Market:      f.market,
		Sentiment:   sentiment,
		Notifier:    f.notifier,
		Journal:     f.journal,
	}, nil)
	return f
}

func snapshot(symbol string, price, rsi float64) market.Snapshot {
	return market.Snapshot{Symbol: symbol, Interval: "1h", Price: price, RSI: rsi, MACDHist: 0.4, Bars: 120}
}

func advice(action decision.Action, reason string) advisory.Result {
	return advisory.Result{Decision: decision.Decision{Action: action, Reason: reason}, Attempts: 1}
}

func TestRunAbortsOnFetchFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.market.On("Snapshot", mock.Anything, "00700").Return(market.Snapshot{}, market.ErrNoData)

	out := f.orch.Run(context.Background(), "00700")
	assert.Equal(t, StageFetch, out.Stage)
	assert.ErrorIs(t, out.Err, market.ErrNoData)
	assert.False(t, out.Applied)
	f.advisor.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything)
	assert.Empty(t, f.journal.decisions)
	assert.Zero(t, f.ledger.Len())
}

func TestRunBuyOpensSizedPosition(t *testing.T) {
	f := newFixture(t, failingSentiment{})
	f.market.On("Snapshot", mock.Anything, "00700").Return(snapshot("00700", 280, 55), nil)
	f.advisor.On("Decide", mock.Anything, mock.MatchedBy(func(req advisory.Request) bool {
		return req.Symbol == "00700" && req.Snapshot.Price == 280 && len(req.Sentiment) == 0
	})).Return(advice(decision.ActionBuy, "MACD golden cross"))

	out := f.orch.Run(context.Background(), "00700")
	require.NoError(t, out.Err)
	assert.Equal(t, StageDecision, out.Stage)
	assert.Equal(t, decision.ActionBuy, out.Final.Action)
	assert.Equal(t, 35, out.Final.SuggestedVolume)
	assert.True(t, out.Applied)
	assert.NotEmpty(t, out.TraceID)

	pos, ok := f.ledger.Get("00700")
	require.True(t, ok)
	assert.Equal(t, 35, pos.Volume)
	assert.Equal(t, 280.0, pos.CostPrice)

	assert.Equal(t, []string{"【量化信号】00700 执行 BUY"}, f.notifier.titles())
	require.Len(t, f.journal.trades, 1)
	assert.Equal(t, journal.LoopScan, f.journal.trades[0].Loop)
	require.Len(t, f.journal.decisions, 1)
	rec := f.journal.decisions[0]
	assert.Equal(t, out.TraceID, rec.TraceID)
	assert.Equal(t, "BUY", rec.AdvisoryAction)
	assert.Equal(t, "BUY", rec.FinalAction)
	assert.Equal(t, 55.0, rec.RSI)
	f.advisor.AssertExpectations(t)
}

func TestRunOverheatedBuyHolds(t *testing.T) {
	f := newFixture(t, nil)
	f.market.On("Snapshot", mock.Anything, "03690").Return(snapshot("03690", 120, 75), nil)
	f.advisor.On("Decide", mock.Anything, mock.Anything).Return(advice(decision.ActionBuy, "breakout"))

	out := f.orch.Run(context.Background(), "03690")
	assert.Equal(t, decision.ActionHold, out.Final.Action)
	assert.Contains(t, out.Final.Reason, decision.ReasonOverheated)
	assert.False(t, out.Applied)
	assert.False(t, f.ledger.Contains("03690"))
	assert.Empty(t, f.notifier.titles())
	require.Len(t, f.journal.decisions, 1)
	assert.Equal(t, "HOLD", f.journal.decisions[0].FinalAction)
}

func TestRunStopPreemptsAdvisory(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Open("00700", 280, 35))
	f.market.On("Snapshot", mock.Anything, "00700").Return(snapshot("00700", 257.6, 20), nil)

	out := f.orch.Run(context.Background(), "00700")
	assert.Equal(t, StageStop, out.Stage)
	assert.Equal(t, risk.StopHard, out.Stop.Kind)
	assert.Equal(t, decision.ActionSellAll, out.Final.Action)
	assert.True(t, out.Applied)
	assert.False(t, f.ledger.Contains("00700"))
	f.advisor.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything)

	assert.Equal(t, []string{"【量化信号】00700 执行 SELL_ALL"}, f.notifier.titles())
	require.Len(t, f.journal.trades, 1)
	assert.Equal(t, 35, f.journal.trades[0].Volume)
	assert.Equal(t, decision.ReasonHardStop, f.journal.trades[0].Reason)
}

func TestRunSellClosesHeldPosition(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Open("09988", 80, 100))
	f.market.On("Snapshot", mock.Anything, "09988").Return(snapshot("09988", 82, 68), nil)
	f.advisor.On("Decide", mock.Anything, mock.Anything).Return(advice(decision.ActionSell, "momentum fading"))

	out := f.orch.Run(context.Background(), "09988")
	assert.Equal(t, decision.ActionSell, out.Final.Action)
	assert.True(t, out.Applied)
	assert.False(t, f.ledger.Contains("09988"))
	require.Len(t, f.journal.trades, 1)
	assert.Equal(t, 100, f.journal.trades[0].Volume)
	assert.Equal(t, 80.0, f.journal.trades[0].CostPrice)
}

func TestRunBuyWhenHeldIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Open("00700", 280, 10))
	f.market.On("Snapshot", mock.Anything, "00700").Return(snapshot("00700", 285, 50), nil)
	f.advisor.On("Decide", mock.Anything, mock.Anything).Return(advice(decision.ActionBuy, "add"))

	out := f.orch.Run(context.Background(), "00700")
	assert.Equal(t, decision.ActionBuy, out.Final.Action)
	assert.False(t, out.Applied)
	pos, _ := f.ledger.Get("00700")
	assert.Equal(t, 10, pos.Volume)
	assert.Equal(t, 285.0, pos.HighestPrice)
	assert.Empty(t, f.notifier.titles())
}

func TestRunFallbackHolds(t *testing.T) {
	f := newFixture(t, nil)
	f.market.On("Snapshot", mock.Anything, "00700").Return(snapshot("00700", 280, 40), nil)
	f.advisor.On("Decide", mock.Anything, mock.Anything).Return(advisory.Result{
		Decision: decision.Fallback(), Attempts: 3, Fallback: true, Err: errors.New("boom"),
	})

	f.journal.err = errors.New("disk full")
	out := f.orch.Run(context.Background(), "00700")
	assert.Equal(t, decision.Fallback(), out.Final)
	assert.False(t, out.Applied)
	require.Len(t, f.journal.decisions, 1)
	assert.True(t, f.journal.decisions[0].Fallback)
	assert.Equal(t, 3, f.journal.decisions[0].Attempts)
}

func TestTickTrailingStop(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Open("00700", 280, 35))

	_, fired := f.orch.Tick(context.Background(), "00700", 310)
	assert.False(t, fired)
	res, fired := f.orch.Tick(context.Background(), "00700", 294)
	require.True(t, fired)
	assert.Equal(t, risk.StopTrailing, res.Kind)
	assert.False(t, f.ledger.Contains("00700"))
	require.Len(t, f.journal.trades, 1)
	assert.Equal(t, journal.LoopTick, f.journal.trades[0].Loop)
	assert.Equal(t, decision.ReasonTrailingStop, f.journal.trades[0].Reason)
	assert.Empty(t, f.journal.decisions)
}

// gatedAdvisor blocks inside Decide until released, so a tick can land mid-cycle.
type gatedAdvisor struct {
	entered chan struct{}
	release chan struct{}
	action  decision.Action
}

func newGatedAdvisor(action decision.Action) *gatedAdvisor {
	return &gatedAdvisor{entered: make(chan struct{}), release: make(chan struct{}), action: action}
}

func (g *gatedAdvisor) Decide(ctx context.Context, req advisory.Request) advisory.Result {
	close(g.entered)
	<-g.release
	return advice(g.action, "late advice")
}

func newGatedFixture(t *testing.T, adv Advisor) *fixture {
	t.Helper()
	f := newFixture(t, nil)
	l := f.ledger
	f.orch = New(Deps{
		Ledger:      l,
		Stops:       risk.NewStopEngine(l, risk.DefaultStopRules(), nil),
		Interceptor: risk.NewInterceptor(l, risk.DefaultRSICeiling, nil),
		Advisor:     adv,
		Market:      f.market,
		Notifier:    f.notifier,
		Journal:     f.journal,
	}, nil)
	return f
}

func assertHighWaterInvariant(t *testing.T, l *ledger.Ledger) {
	t.Helper()
	for sym, pos := range l.Snapshot() {
		assert.GreaterOrEqual(t, pos.HighestPrice, pos.CostPrice, sym)
	}
}

func TestTickStopDuringScanCycle(t *testing.T) {
	for _, action := range []decision.Action{decision.ActionSell, decision.ActionBuy} {
		t.Run(string(action), func(t *testing.T) {
			adv := newGatedAdvisor(action)
			f := newGatedFixture(t, adv)
			require.NoError(t, f.ledger.Open("00700", 280, 35))
			f.market.On("Snapshot", mock.Anything, "00700").Return(snapshot("00700", 290, 50), nil)

			done := make(chan Outcome, 1)
			go func() { done <- f.orch.Run(context.Background(), "00700") }()
			<-adv.entered

			res, fired := f.orch.Tick(context.Background(), "00700", 257.6)
			require.True(t, fired)
			assert.Equal(t, risk.StopHard, res.Kind)
			close(adv.release)
			out := <-done

			assert.False(t, out.Applied)
			assert.False(t, f.ledger.Contains("00700"), "position must not come back")
			require.Len(t, f.journal.trades, 1)
			assert.Equal(t, journal.LoopTick, f.journal.trades[0].Loop)
			assert.Equal(t, decision.ReasonHardStop, f.journal.trades[0].Reason)
			assert.Len(t, f.notifier.titles(), 1)
			assertHighWaterInvariant(t, f.ledger)
		})
	}
}

type instantAdvisor struct{ action decision.Action }

func (a instantAdvisor) Decide(context.Context, advisory.Request) advisory.Result {
	return advice(a.action, "instant")
}

func TestConcurrentScanAndTickCloseOnce(t *testing.T) {
	for _, action := range []decision.Action{decision.ActionSell, decision.ActionBuy} {
		t.Run(string(action), func(t *testing.T) {
			f := newGatedFixture(t, instantAdvisor{action: action})
			f.market.On("Snapshot", mock.Anything, "00700").Return(snapshot("00700", 290, 50), nil)

			const rounds = 50
			for i := 0; i < rounds; i++ {
				require.NoError(t, f.ledger.Open("00700", 280, 35))
				var wg sync.WaitGroup
				wg.Add(2)
				go func() {
					defer wg.Done()
					f.orch.Run(context.Background(), "00700")
				}()
				go func() {
					defer wg.Done()
					f.orch.Tick(context.Background(), "00700", 257.6)
				}()
				wg.Wait()
				assertHighWaterInvariant(t, f.ledger)
				// 每轮最多一次平仓；若 tick 先于周期读取持仓，BUY 可在空仓时合法开新仓
				if f.ledger.Contains("00700") {
					_, _ = f.ledger.Close("00700")
				}
			}

			f.journal.mu.Lock()
			defer f.journal.mu.Unlock()
			closes := 0
			for _, tr := range f.journal.trades {
				if tr.Action != string(decision.ActionBuy) {
					closes++
				}
			}
			assert.Equal(t, rounds, closes, "every round closes exactly once")
		})
	}
}
