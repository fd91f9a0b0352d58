package livecache

import (
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"sync"
	"time"

	"quantguard/internal/logger"
	"quantguard/internal/market"
	"quantguard/internal/pkg/fsutil"
)

// Entry 是展示层读取的单个标的实时价格。
type Entry struct {
	Price     float64 `json:"price"`
	PctChange float64 `json:"pct_change"`
}

// Cache 保存每个标的的最新报价，与账本分离。只有 tick 循环写入，
// 每次 flush 整体替换文件。
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	updatedAt time.Time
	path      string
	log       *slog.Logger
}

func New(path string, log *slog.Logger) *Cache {
	return &Cache{
		entries: map[string]Entry{},
		path:    path,
		log:     logger.OrDiscard(log).With("component", "livecache"),
	}
}

func (c *Cache) Update(q market.Quote) {
	if q.Symbol == "" || !market.ValidPrice(q.Price) {
		if q.Symbol != "" {
			c.log.Warn("quote ignored: invalid price", "symbol", q.Symbol, "price", q.Price)
		}
		return
	}
	pct := q.PctChange
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		pct = 0
	}
	c.mu.Lock()
	c.entries[q.Symbol] = Entry{Price: q.Price, PctChange: pct}
	if q.At.After(c.updatedAt) {
		c.updatedAt = q.At
	}
	c.mu.Unlock()
}

func (c *Cache) Get(symbol string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	return e, ok
}

func (c *Cache) Snapshot() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Flush 原子替换缓存文件。失败只记录日志，下个 tick 会重写。
func (c *Cache) Flush() error {
	if c.path == "" {
		return nil
	}
	snap := c.Snapshot()
	if err := fsutil.WriteJSONAtomic(c.path, snap, fsutil.WriteOptions{}); err != nil {
		c.log.Error("flush live cache failed", "path", c.path, "err", err)
		return err
	}
	return nil
}

// Read 读取 Flush 写出的缓存文件，文件不存在视为空缓存。
func Read(path string) (map[string]Entry, error) {
	out := map[string]Entry{}
	if err := fsutil.ReadJSON(path, &out); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Entry{}, nil
		}
		return nil, err
	}
	return out, nil
}
