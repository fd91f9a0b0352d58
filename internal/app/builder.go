package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quantguard/internal/advisory"
	"quantguard/internal/config"
	"quantguard/internal/cycle"
	"quantguard/internal/gateway/notifier"
	"quantguard/internal/gateway/provider"
	"quantguard/internal/ledger"
	"quantguard/internal/livecache"
	"quantguard/internal/logger"
	"quantguard/internal/market"
	"quantguard/internal/risk"
	"quantguard/internal/scheduler"
	"quantguard/internal/store/journal"
	livehttp "quantguard/internal/transport/http/live"
	"quantguard/internal/watchlist"
)

// AppBuilder 按固定顺序装配依赖：配置→日志→账本→风控→建议→行情→通知→审计→调度→HTTP。
type AppBuilder struct {
	cfg *config.Config
	log *slog.Logger

	modelFn     func(config.AdvisoryConfig, *slog.Logger) (provider.ModelProvider, error)
	marketFn    func(config.MarketConfig) (*MarketStack, error)
	sentimentFn func(config.SentimentConfig, *slog.Logger) market.SentimentProvider
	sinksFn     func(config.NotifyConfig, *slog.Logger) []notifier.Notifier
	liveHTTPFn  func(config.AppConfig, livehttp.ServerConfig) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithLogger 替换默认日志（默认按 app.log_level 输出到 stdout）。
func WithLogger(log *slog.Logger) AppBuilderOption {
	return func(b *AppBuilder) { b.log = log }
}

// WithModelProvider 替换 OpenAI 兼容客户端，例如接本地桩。
func WithModelProvider(m provider.ModelProvider) AppBuilderOption {
	return func(b *AppBuilder) {
		b.modelFn = func(config.AdvisoryConfig, *slog.Logger) (provider.ModelProvider, error) { return m, nil }
	}
}

func WithMarketStack(stack *MarketStack) AppBuilderOption {
	return func(b *AppBuilder) {
		b.marketFn = func(config.MarketConfig) (*MarketStack, error) { return stack, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		modelFn:     buildModelProvider,
		marketFn:    buildMarketStack,
		sentimentFn: buildSentiment,
		sinksFn:     buildSinks,
		liveHTTPFn:  buildLiveHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (_ *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.closeResources(context.Background())
		}
	}()

	log := b.log
	if log == nil {
		out, closer, oerr := logger.OpenOutput(cfg.App.LogPath)
		if oerr != nil {
			return nil, fmt.Errorf("初始化日志文件失败: %w", oerr)
		}
		a.addCloser(closer)
		log = logger.New(logger.Options{Level: cfg.App.LogLevel, Output: out})
	}
	a.log = log

	l, err := ledger.New(ledger.NewFileStore(cfg.Ledger.Path), ledger.Capital{
		TotalCapital:     cfg.Ledger.TotalCapital,
		MaxExposureRatio: cfg.Ledger.MaxExposureRatio,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("初始化持仓账本失败: %w", err)
	}
	a.ledger = l

	rules := risk.StopRules{
		TrailingActivation: cfg.Risk.TrailingActivationPct,
		TrailingPullback:   cfg.Risk.TrailingPullbackPct,
		HardStop:           cfg.Risk.HardStopPct,
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	stops := risk.NewStopEngine(l, rules, log)
	interceptor := risk.NewInterceptor(l, cfg.Risk.RSICeiling, log)

	sinks := b.sinksFn(cfg.Notify, log)
	a.dispatcher = notifier.NewDispatcher(log, sinks...)

	model, err := b.modelFn(cfg.Advisory, log)
	if err != nil {
		return nil, fmt.Errorf("初始化建议服务失败: %w", err)
	}
	payloads, err := openPayloadLog(cfg.App)
	if err != nil {
		return nil, err
	}
	if payloads != nil {
		a.addCloser(payloads)
	}
	advisor := buildAdvisor(cfg.Advisory, model, payloads, a.dispatcher, log)

	stack, err := b.marketFn(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("初始化行情源失败: %w", err)
	}
	sentiment := b.sentimentFn(cfg.Sentiment, log)

	var recorder cycle.Recorder
	if cfg.Journal.Enabled {
		j, jerr := journal.Open(cfg.Journal.Path)
		if jerr != nil {
			return nil, fmt.Errorf("初始化审计日志失败: %w", jerr)
		}
		a.journal = j
		a.addCloser(j)
		recorder = j
	}

	orch := cycle.New(cycle.Deps{
		Ledger:      l,
		Stops:       stops,
		Interceptor: interceptor,
		Advisor:     advisor,
		Market:      stack.Provider,
		Sentiment:   sentiment,
		Notifier:    a.dispatcher,
		Journal:     recorder,
	}, log)

	a.watchlist = watchlist.NewStore(cfg.Watchlist.Path, log)
	a.prices = livecache.New(cfg.LiveCache.Path, log)

	gate, err := scheduler.GateFromConfig(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	a.scheduler, err = scheduler.New(scheduler.Options{
		Pool:            cfg.Schedule.TargetPool,
		TickInterval:    cfg.Schedule.TickInterval(),
		ScanTimes:       cfg.Schedule.ScanTimes,
		ScanOnStart:     cfg.Schedule.ScanOnStart,
		Workers:         cfg.Schedule.ScanWorkers,
		TaskTimeout:     cfg.Schedule.TaskTimeout(),
		ShutdownTimeout: cfg.Schedule.ShutdownTimeout(),
		Gate:            gate,
	}, scheduler.Deps{
		Cycle:     orch,
		Positions: l,
		Quotes:    stack.Provider,
		Targets:   a.watchlist,
		Cache:     a.prices,
	}, log)
	if err != nil {
		return nil, err
	}

	httpCfg := livehttp.ServerConfig{
		Positions: l,
		Prices:    a.prices,
		Watchlist: a.watchlist,
		Pool:      cfg.Schedule.TargetPool,
		Logger:    log,
	}
	if a.journal != nil {
		httpCfg.Journal = a.journal
	}
	a.liveHTTP, err = b.liveHTTPFn(cfg.App, httpCfg)
	if err != nil {
		return nil, err
	}

	a.Summary = &StartupSummary{
		Env:          cfg.App.Env,
		Pool:         cfg.Schedule.TargetPool,
		Targets:      a.watchlist.Targets(cfg.Schedule.TargetPool),
		Positions:    l.Len(),
		Capital:      cfg.Ledger.TotalCapital,
		Exposure:     cfg.Ledger.MaxExposureRatio,
		Rules:        rules,
		RSICeiling:   cfg.Risk.RSICeiling,
		Timezone:     gate.Location().String(),
		Sessions:     cfg.Schedule.Sessions,
		ScanTimes:    cfg.Schedule.ScanTimes,
		TickInterval: cfg.Schedule.TickInterval(),
		Workers:      cfg.Schedule.ScanWorkers,
		Model:        model.Model(),
		MarketSource: stack.Name,
		Sentiment:    cfg.Sentiment.Source,
		Notifiers:    a.dispatcher.Sinks(),
		HTTPAddr:     a.liveHTTP.Addr(),
		JournalPath:  journalPath(cfg.Journal),
	}
	log.Info("✓ 应用装配完成", "positions", l.Len(), "market", stack.Name, "model", model.Model())
	return a, nil
}

func openPayloadLog(cfg config.AppConfig) (*logger.PayloadLog, error) {
	if !cfg.AdvisoryDump || strings.TrimSpace(cfg.AdvisoryLogPath) == "" {
		return nil, nil
	}
	p, err := logger.OpenPayloadLog(cfg.AdvisoryLogPath)
	if err != nil {
		return nil, fmt.Errorf("初始化建议服务 payload 日志失败: %w", err)
	}
	return p, nil
}

func journalPath(cfg config.JournalConfig) string {
	if !cfg.Enabled {
		return ""
	}
	return cfg.Path
}

func buildAdvisor(cfg config.AdvisoryConfig, model provider.ModelProvider, payloads *logger.PayloadLog, alerts *notifier.Dispatcher, log *slog.Logger) *advisory.Client {
	breaker := newAdvisoryBreaker(cfg, alerts, log)
	return advisory.NewClient(model, advisory.Options{
		Attempts:    cfg.Attempts,
		Temperature: cfg.Temperature,
		Breaker:     breaker,
		Payloads:    payloads,
	}, log)
}
