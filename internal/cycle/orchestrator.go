package cycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"quantguard/internal/advisory"
	"quantguard/internal/decision"
	"quantguard/internal/gateway/notifier"
	"quantguard/internal/ledger"
	"quantguard/internal/logger"
	"quantguard/internal/market"
	"quantguard/internal/risk"
	"quantguard/internal/store/journal"
)

// Advisor 是建议服务的最小接口，*advisory.Client 实现它。
type Advisor interface {
	Decide(ctx context.Context, req advisory.Request) advisory.Result
}

type Notifier interface {
	Notify(msg notifier.StructuredMessage)
}

// Recorder 持久化审计记录。错误由编排器记录日志，从不上抛。
type Recorder interface {
	RecordDecision(ctx context.Context, rec *journal.DecisionRecord) error
	RecordTrade(ctx context.Context, rec *journal.TradeRecord) error
}

type Deps struct {
	Ledger      *ledger.Ledger
	Stops       *risk.StopEngine
	Interceptor *risk.Interceptor
	Advisor     Advisor
	Market      market.DataProvider
	Sentiment   market.SentimentProvider
	Notifier    Notifier
	Journal     Recorder
}

// Stage 标记一次周期在哪一步结束。
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageStop     Stage = "stop"
	StageDecision Stage = "decision"
)

// Outcome 汇总单个标的的一次周期。
type Outcome struct {
	TraceID  string
	Symbol   string
	Stage    Stage
	Snapshot market.Snapshot
	Advisory advisory.Result
	Final    decision.Decision
	Stop     risk.StopResult
	// Applied 为 true 表示账本发生了变化。
	Applied bool
	Err     error
}

// Orchestrator 执行单标的流水线：取数、止损检查、建议、拦截、落账。
// 不同标的的周期之间只共享账本。
type Orchestrator struct {
	deps Deps
	log  *slog.Logger
	now  func() time.Time
}

func New(deps Deps, log *slog.Logger) *Orchestrator {
	if deps.Sentiment == nil {
		deps.Sentiment = market.NoSentiment{}
	}
	return &Orchestrator{deps: deps, log: logger.OrDiscard(log).With("component", "cycle"), now: time.Now}
}

// Run 为 symbol 执行一次扫描周期。数据源失败不会 panic，
// 取数错误以 Stage=fetch 结束周期并设置 Err。
func (o *Orchestrator) Run(ctx context.Context, symbol string) Outcome {
	out := Outcome{TraceID: uuid.NewString(), Symbol: symbol}
	log := o.log.With("symbol", symbol, "trace_id", out.TraceID)

	snap, headlines, err := o.fetch(ctx, symbol, log)
	if err != nil {
		out.Stage = StageFetch
		out.Err = err
		log.Warn("cycle aborted: market data unavailable", "err", err)
		return out
	}
	out.Snapshot = snap

	held := o.deps.Ledger.Contains(symbol)
	if held {
		if res, fired := o.deps.Stops.CheckAndClose(symbol, snap.Price); fired {
			out.Stage = StageStop
			out.Stop = res
			out.Final = res.Decision()
			out.Applied = true
			o.afterStop(ctx, journal.LoopScan, out.TraceID, res)
			o.recordDecision(ctx, out, log)
			return out
		}
	}

	out.Stage = StageDecision
	out.Advisory = o.deps.Advisor.Decide(ctx, advisory.Request{Symbol: symbol, Snapshot: snap, Sentiment: headlines})
	out.Final = o.deps.Interceptor.Intercept(symbol, out.Advisory.Decision, snap.Price, snap.RSI)
	log.Info("decision",
		"advisory", out.Advisory.Decision.Action,
		"final", out.Final.Action,
		"reason", out.Final.Reason,
		"volume", out.Final.SuggestedVolume,
		"latency_ms", out.Advisory.Latency.Milliseconds(),
		"fallback", out.Advisory.Fallback,
	)
	out.Applied = o.apply(ctx, out, held, log)
	o.recordDecision(ctx, out, log)
	return out
}

// fetch 并发拉取行情快照与新闻；新闻失败降级为空列表，快照失败中止周期。
func (o *Orchestrator) fetch(ctx context.Context, symbol string, log *slog.Logger) (market.Snapshot, []string, error) {
	var (
		snap      market.Snapshot
		headlines []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := o.deps.Market.Snapshot(gctx, symbol)
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	g.Go(func() error {
		h, err := o.deps.Sentiment.Headlines(gctx, symbol)
		if err != nil {
			log.Warn("sentiment unavailable, continuing without", "err", err)
			return nil
		}
		headlines = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return market.Snapshot{}, nil, err
	}
	return snap, headlines, nil
}

// heldAtStart 为周期开始时的持仓状态；期间 tick 止损平仓后，基于旧状态的 BUY 不得重新开仓。
func (o *Orchestrator) apply(ctx context.Context, out Outcome, heldAtStart bool, log *slog.Logger) bool {
	final := out.Final
	price := out.Snapshot.Price
	switch {
	case final.Action == decision.ActionBuy:
		if heldAtStart {
			log.Warn("buy skipped: symbol was held when the cycle started")
			return false
		}
		opened, err := o.deps.Ledger.OpenIfAbsent(out.Symbol, price, final.SuggestedVolume)
		if err != nil || !opened {
			return false
		}
		o.announce(ctx, journal.LoopScan, out.TraceID, notifier.TradeEvent{
			Symbol: out.Symbol,
			Action: string(final.Action),
			Reason: final.Reason,
			Price:  price,
			Volume: final.SuggestedVolume,
			Source: "scan",
		}, price)
		return true
	case final.Action.IsExit():
		pos, closed := o.deps.Ledger.Close(out.Symbol)
		if !closed {
			log.Warn("sell skipped: position already gone")
			return false
		}
		o.announce(ctx, journal.LoopScan, out.TraceID, notifier.TradeEvent{
			Symbol: out.Symbol,
			Action: string(final.Action),
			Reason: final.Reason,
			Price:  price,
			Volume: pos.Volume,
			Source: "scan",
		}, pos.CostPrice)
		return true
	default:
		return false
	}
}

// Tick 用实时价格对持仓标的执行止损规则。它是快速循环的入口，
// 从不调用建议服务。
func (o *Orchestrator) Tick(ctx context.Context, symbol string, price float64) (risk.StopResult, bool) {
	res, fired := o.deps.Stops.CheckAndClose(symbol, price)
	if fired {
		o.afterStop(ctx, journal.LoopTick, uuid.NewString(), res)
	}
	return res, fired
}

func (o *Orchestrator) afterStop(ctx context.Context, loop, traceID string, res risk.StopResult) {
	d := res.Decision()
	o.announce(ctx, loop, traceID, notifier.TradeEvent{
		Symbol: res.Symbol,
		Action: string(d.Action),
		Reason: d.Reason,
		Price:  res.Price,
		Volume: res.Position.Volume,
		Source: loop,
	}, res.Position.CostPrice)
}

func (o *Orchestrator) announce(ctx context.Context, loop, traceID string, ev notifier.TradeEvent, cost float64) {
	ev.At = o.now()
	if o.deps.Notifier != nil {
		o.deps.Notifier.Notify(notifier.TradeAlert(ev))
	}
	if o.deps.Journal == nil {
		return
	}
	rec := &journal.TradeRecord{
		TraceID:   traceID,
		Loop:      loop,
		Symbol:    ev.Symbol,
		Action:    ev.Action,
		Reason:    ev.Reason,
		Price:     ev.Price,
		Volume:    ev.Volume,
		CostPrice: cost,
		CreatedAt: ev.At.UTC(),
	}
	if err := o.deps.Journal.RecordTrade(context.WithoutCancel(ctx), rec); err != nil {
		o.log.Warn("journal trade failed", "symbol", ev.Symbol, "trace_id", traceID, "err", err)
	}
}

func (o *Orchestrator) recordDecision(ctx context.Context, out Outcome, log *slog.Logger) {
	if o.deps.Journal == nil {
		return
	}
	raw, _ := json.Marshal(out.Snapshot)
	rec := &journal.DecisionRecord{
		TraceID:         out.TraceID,
		Loop:            journal.LoopScan,
		Symbol:          out.Symbol,
		Price:           out.Snapshot.Price,
		RSI:             out.Snapshot.RSI,
		MACDHist:        out.Snapshot.MACDHist,
		AdvisoryAction:  string(out.Advisory.Decision.Action),
		AdvisoryReason:  out.Advisory.Decision.Reason,
		FinalAction:     string(out.Final.Action),
		FinalReason:     out.Final.Reason,
		SuggestedVolume: out.Final.SuggestedVolume,
		Attempts:        out.Advisory.Attempts,
		Fallback:        out.Advisory.Fallback,
		LatencyMs:       out.Advisory.Latency.Milliseconds(),
		Snapshot:        datatypes.JSON(raw),
		CreatedAt:       o.now().UTC(),
	}
	if err := o.deps.Journal.RecordDecision(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("journal decision failed", "err", err)
	}
}
