package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"quantguard/internal/cycle"
	"quantguard/internal/logger"
	"quantguard/internal/market"
	"quantguard/internal/risk"
)

const (
	defaultTickInterval    = 5 * time.Second
	defaultTaskTimeout     = 2 * time.Minute
	defaultShutdownTimeout = 30 * time.Second
	defaultWorkers         = 2
	quoteConcurrency       = 4
	// cancelGrace 限制取消进行中任务后的等待时长。
	cancelGrace = 5 * time.Second
)

// Cycle 是单标的流水线，*cycle.Orchestrator 实现它。
type Cycle interface {
	Run(ctx context.Context, symbol string) cycle.Outcome
	Tick(ctx context.Context, symbol string, price float64) (risk.StopResult, bool)
}

// Positions 是调度器需要的账本视图。
type Positions interface {
	Symbols() []string
	Flush() error
}

// Targets 把用户自选合并进固定池，*watchlist.Store 实现它。
type Targets interface {
	Targets(pool []string) []string
}

// PriceCache 接收每一条实时报价，*livecache.Cache 实现它。
type PriceCache interface {
	Update(q market.Quote)
	Flush() error
}

type Options struct {
	Pool            []string
	TickInterval    time.Duration
	ScanTimes       []string
	ScanOnStart     bool
	Workers         int
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
	Gate            *Gate
}

type Deps struct {
	Cycle     Cycle
	Positions Positions
	Quotes    market.QuoteSource
	Targets   Targets
	Cache     PriceCache
}

// ScanReport 汇总一次全盘扫描。
type ScanReport struct {
	At      time.Time
	Skipped string
	Symbols int
	Aborted int
	Applied int
	Elapsed time.Duration
}

type TickReport struct {
	Skipped string
	Quoted  int
	Failed  int
	Stopped []string
}

// Scheduler 驱动两个并发循环：快速 tick 循环做止损，定时扫描循环做深度分析。
type Scheduler struct {
	opts     Options
	deps     Deps
	specs    []string
	log      *slog.Logger
	scanning atomic.Bool
}

func New(opts Options, deps Deps, log *slog.Logger) (*Scheduler, error) {
	if deps.Cycle == nil || deps.Positions == nil || deps.Quotes == nil {
		return nil, errors.New("scheduler: cycle, positions and quotes are required")
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Gate == nil {
		opts.Gate = Always()
	}
	specs, err := cronSpecs(opts.ScanTimes)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return &Scheduler{
		opts:  opts,
		deps:  deps,
		specs: specs,
		log:   logger.OrDiscard(log).With("component", "scheduler"),
	}, nil
}

// TargetSymbols 返回固定池与自选合并后的标的。
func (s *Scheduler) TargetSymbols() []string {
	if s.deps.Targets == nil {
		return append([]string(nil), s.opts.Pool...)
	}
	return s.deps.Targets.Targets(s.opts.Pool)
}

// Run 阻塞到 ctx 取消，随后停止派发新扫描，等待进行中的任务
// （受 ShutdownTimeout 限制）并落盘账本。
func (s *Scheduler) Run(ctx context.Context) error {
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var inflight sync.WaitGroup
	c := cron.New(cron.WithLocation(s.opts.Gate.Location()))
	for i, spec := range s.specs {
		if _, err := c.AddFunc(spec, func() { s.ScanOnce(workCtx) }); err != nil {
			return fmt.Errorf("scheduler: scan time %s: %w", s.opts.ScanTimes[i], err)
		}
		s.log.Info("scan scheduled", "at", s.opts.ScanTimes[i], "cron", spec)
	}
	c.Start()
	if s.opts.ScanOnStart {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			s.ScanOnce(workCtx)
		}()
	}

	s.tickLoop(ctx, workCtx)

	s.log.Info("scheduler stopping")
	cronDone := c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		inflight.Wait()
		close(done)
	}()
	timer := time.NewTimer(s.opts.ShutdownTimeout)
	select {
	case <-done:
		timer.Stop()
	case <-timer.C:
		s.log.Warn("in-flight scan exceeded shutdown timeout, cancelling", "timeout", s.opts.ShutdownTimeout)
		cancelWork()
		select {
		case <-done:
		case <-time.After(cancelGrace):
			s.log.Error("in-flight scan ignored cancellation")
		}
	}
	return s.flush()
}

func (s *Scheduler) flush() error {
	var errs []error
	if err := s.deps.Positions.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush ledger: %w", err))
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush price cache: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error("final flush failed", "err", err)
		return err
	}
	s.log.Info("final flush done")
	return nil
}

func (s *Scheduler) tickLoop(ctx, workCtx context.Context) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	s.TickOnce(workCtx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TickOnce(workCtx)
		}
	}
}

// TickOnce 拉取轻量报价、刷新实时缓存，并对持仓直接执行止损检查。
func (s *Scheduler) TickOnce(ctx context.Context) TickReport {
	var rep TickReport
	if !s.opts.Gate.Open() {
		rep.Skipped = "market closed"
		return rep
	}
	held := s.deps.Positions.Symbols()
	heldSet := make(map[string]bool, len(held))
	for _, sym := range held {
		heldSet[sym] = true
	}
	symbols := unionSorted(s.TargetSymbols(), held)

	var (
		mu      sync.Mutex
		stopped []string
	)
	g := new(errgroup.Group)
	g.SetLimit(quoteConcurrency)
	for _, sym := range symbols {
		g.Go(func() error {
			defer s.recoverTask("tick", sym)
			qctx, cancel := context.WithTimeout(ctx, s.opts.TickInterval*2)
			q, err := s.deps.Quotes.Quote(qctx, sym)
			cancel()
			if err != nil {
				s.log.Warn("tick quote failed", "symbol", sym, "err", err)
				mu.Lock()
				rep.Failed++
				mu.Unlock()
				return nil
			}
			if s.deps.Cache != nil {
				s.deps.Cache.Update(q)
			}
			mu.Lock()
			rep.Quoted++
			mu.Unlock()
			if !heldSet[sym] {
				return nil
			}
			if _, fired := s.deps.Cycle.Tick(ctx, sym, q.Price); fired {
				mu.Lock()
				stopped = append(stopped, sym)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if s.deps.Cache != nil && rep.Quoted > 0 {
		if err := s.deps.Cache.Flush(); err != nil {
			s.log.Warn("price cache flush failed", "err", err)
		}
	}
	sort.Strings(stopped)
	rep.Stopped = stopped
	return rep
}

// ScanOnce 通过工作池为每个目标标的派发周期并等待全部完成。
// 上一轮未结束时的重叠触发会被跳过。
func (s *Scheduler) ScanOnce(ctx context.Context) ScanReport {
	rep := ScanReport{At: time.Now()}
	if !s.opts.Gate.Open() {
		rep.Skipped = "market closed"
		s.log.Info("scan skipped: outside trading hours")
		return rep
	}
	if !s.scanning.CompareAndSwap(false, true) {
		rep.Skipped = "scan in progress"
		s.log.Warn("scan skipped: previous scan still running")
		return rep
	}
	defer s.scanning.Store(false)

	symbols := s.TargetSymbols()
	rep.Symbols = len(symbols)
	s.log.Info(">>> scan started", "symbols", len(symbols), "workers", s.opts.Workers)

	var aborted, applied atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer s.recoverTask("scan", sym)
			tctx, cancel := context.WithTimeout(ctx, s.opts.TaskTimeout)
			defer cancel()
			out := s.deps.Cycle.Run(tctx, sym)
			if out.Err != nil {
				aborted.Add(1)
			}
			if out.Applied {
				applied.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	rep.Aborted = int(aborted.Load())
	rep.Applied = int(applied.Load())
	rep.Elapsed = time.Since(rep.At)
	s.log.Info("<<< scan finished",
		"symbols", rep.Symbols,
		"aborted", rep.Aborted,
		"applied", rep.Applied,
		"elapsed", rep.Elapsed.Truncate(time.Millisecond),
	)
	return rep
}

func (s *Scheduler) recoverTask(loop, symbol string) {
	if r := recover(); r != nil {
		s.log.Error("task panic recovered", "loop", loop, "symbol", symbol, "panic", r, "stack", string(debug.Stack()))
	}
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, sym := range list {
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
