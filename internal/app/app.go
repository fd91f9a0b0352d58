package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"quantguard/internal/config"
	"quantguard/internal/gateway/notifier"
	"quantguard/internal/ledger"
	"quantguard/internal/livecache"
	"quantguard/internal/scheduler"
	"quantguard/internal/store/journal"
	livehttp "quantguard/internal/transport/http/live"
	"quantguard/internal/watchlist"
)

const closeTimeout = 10 * time.Second

// App 负责应用级编排：启动调度循环、HTTP 接口与自选监听，退出时按序释放资源。
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	ledger     *ledger.Ledger
	scheduler  *scheduler.Scheduler
	liveHTTP   *livehttp.Server
	watchlist  *watchlist.Store
	prices     *livecache.Cache
	dispatcher *notifier.Dispatcher
	journal    *journal.Journal
	closers    []io.Closer
	Summary    *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildAppWithWire(context.Background(), cfg, opts)
}

// Run 阻塞到 ctx 取消或某个组件失败。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.scheduler == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.closeResources(context.Background())

	group, gctx := errgroup.WithContext(ctx)
	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(gctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		// 监听失败只影响缓存命中，Symbols 会退回到每次读盘。
		if err := a.watchlist.Watch(gctx); err != nil {
			a.log.Warn("watchlist watcher unavailable", "err", err)
		}
		return nil
	})
	group.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Ledger() *ledger.Ledger { return a.ledger }

func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

func (a *App) addCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// closeResources drains pending notifications, then closes in reverse build order.
func (a *App) closeResources(ctx context.Context) {
	if a.dispatcher != nil {
		cctx, cancel := context.WithTimeout(ctx, closeTimeout)
		if err := a.dispatcher.Close(cctx); err != nil && a.log != nil {
			a.log.Warn("notifier drain timed out", "err", err)
		}
		cancel()
		a.dispatcher = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
