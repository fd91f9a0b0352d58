package ledger

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"quantguard/internal/logger"
)

// Ledger 是持仓的唯一可变状态。所有读写都经过同一把锁，
// 每次变更在锁内完成持久化，保证快照与内存一致。
type Ledger struct {
	mu        sync.Mutex
	positions map[string]Position
	capital   Capital
	store     Store
	log       *slog.Logger
	lastErr   error
}

// New 加载持久化快照并返回可用的账本。
func New(store Store, capital Capital, log *slog.Logger) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: store is required")
	}
	if err := capital.Validate(); err != nil {
		return nil, err
	}
	loaded, err := store.Load()
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		positions: loaded,
		capital:   capital,
		store:     store,
		log:       logger.OrDiscard(log).With("component", "ledger"),
	}
	if l.positions == nil {
		l.positions = map[string]Position{}
	}
	l.log.Info("ledger loaded", "positions", len(l.positions))
	return l, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (l *Ledger) Capital() Capital { return l.capital }

// Open 记录新持仓。已有同标的持仓会被覆盖，上游应视为逻辑错误。
func (l *Ledger) Open(symbol string, price float64, volume int) error {
	sym := normalize(symbol)
	pos := Position{Symbol: sym, CostPrice: price, Volume: volume, HighestPrice: price}
	if err := pos.validate(); err != nil {
		l.log.Warn("open rejected", "symbol", sym, "err", err)
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.positions[sym]; ok {
		l.log.Warn("open overwrites existing position", "symbol", sym, "prev_volume", prev.Volume, "prev_cost", prev.CostPrice)
	}
	l.positions[sym] = pos
	l.persistLocked()
	l.log.Info("position opened", "symbol", sym, "price", price, "volume", volume)
	return nil
}

// OpenIfAbsent 仅在该标的无持仓时开仓。检查与写入在同一临界区内，
// 并发的止损平仓不会被覆盖。
func (l *Ledger) OpenIfAbsent(symbol string, price float64, volume int) (bool, error) {
	sym := normalize(symbol)
	pos := Position{Symbol: sym, CostPrice: price, Volume: volume, HighestPrice: price}
	if err := pos.validate(); err != nil {
		l.log.Warn("open rejected", "symbol", sym, "err", err)
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.positions[sym]; ok {
		l.log.Warn("open skipped: already held", "symbol", sym)
		return false, nil
	}
	l.positions[sym] = pos
	l.persistLocked()
	l.log.Info("position opened", "symbol", sym, "price", price, "volume", volume)
	return true, nil
}

// Close 移除持仓（若存在）并返回被移除的持仓。
func (l *Ledger) Close(symbol string) (Position, bool) {
	sym := normalize(symbol)
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.closeLocked(sym)
	if ok {
		l.log.Info("position closed", "symbol", sym, "volume", pos.Volume)
	}
	return pos, ok
}

// UpdateHighWaterMark 抬高最高价，只有创新高时才持久化。
func (l *Ledger) UpdateHighWaterMark(symbol string, observed float64) bool {
	sym := normalize(symbol)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.raiseLocked(sym, observed)
}

// Mutation 描述 fn 执行后 Apply 对持仓的处理方式。
type Mutation struct {
	// HighestPrice 高于当前最高价时替换之。
	HighestPrice float64
	Remove       bool
}

// Apply 在账本锁内以 symbol 的当前视图调用 fn，并在同一临界区内应用
// 返回的变更。返回的持仓是最高价更新之后、移除之前的状态。
func (l *Ledger) Apply(symbol string, fn func(pos Position, held bool) Mutation) (Position, bool) {
	sym := normalize(symbol)
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, held := l.positions[sym]
	m := fn(pos, held)
	if !held {
		return Position{}, false
	}
	if l.raiseLocked(sym, m.HighestPrice) {
		pos = l.positions[sym]
	}
	if m.Remove {
		l.closeLocked(sym)
	}
	return pos, true
}

// Snapshot 返回全部持仓的独立副本。
func (l *Ledger) Snapshot() map[string]Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyPositions(l.positions)
}

// Symbols 按字典序列出持仓标的。
func (l *Ledger) Symbols() []string {
	l.mu.Lock()
	out := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		out = append(out, sym)
	}
	l.mu.Unlock()
	sort.Strings(out)
	return out
}

func (l *Ledger) Get(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[normalize(symbol)]
	return pos, ok
}

func (l *Ledger) Contains(symbol string) bool {
	_, ok := l.Get(symbol)
	return ok
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

// Flush 强制写入当前状态，用于退出时。
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persistLocked()
	return l.lastErr
}

// LastPersistError 返回最近一次持久化的结果，成功后会被清空。
func (l *Ledger) LastPersistError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Ledger) closeLocked(sym string) (Position, bool) {
	pos, ok := l.positions[sym]
	if !ok {
		return Position{}, false
	}
	delete(l.positions, sym)
	l.persistLocked()
	return pos, true
}

func (l *Ledger) raiseLocked(sym string, observed float64) bool {
	pos, ok := l.positions[sym]
	// NaN 比较恒为 false，需单独排除，否则会写入非法最高价。
	if !ok || math.IsNaN(observed) || math.IsInf(observed, 0) || observed <= pos.HighestPrice {
		return false
	}
	pos.HighestPrice = observed
	l.positions[sym] = pos
	l.persistLocked()
	l.log.Debug("high-water mark raised", "symbol", sym, "highest", observed)
	return true
}

// persistLocked 失败不回滚内存状态，只记录错误，下次变更时重试。
func (l *Ledger) persistLocked() {
	err := l.store.Save(copyPositions(l.positions))
	if err != nil {
		l.log.Error("persist ledger failed", "err", err)
	}
	l.lastErr = err
}

func copyPositions(in map[string]Position) map[string]Position {
	out := make(map[string]Position, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
