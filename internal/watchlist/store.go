package watchlist

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"quantguard/internal/logger"
)

// Store 缓存自选列表。文件由外部选股工具和展示层改写，
// 监听到变更后下一次读取会重新加载；未启用监听时每次都读盘。
type Store struct {
	path     string
	log      *slog.Logger
	mu       sync.Mutex
	cached   []string
	dirty    atomic.Bool
	watching atomic.Bool
}

func NewStore(path string, log *slog.Logger) *Store {
	s := &Store{path: path, log: logger.OrDiscard(log).With("component", "watchlist")}
	s.dirty.Store(true)
	return s
}

func (s *Store) Path() string { return s.path }

// Symbols 返回当前用户自选列表。
func (s *Store) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbolsLocked()...)
}

func (s *Store) symbolsLocked() []string {
	if s.watching.Load() && !s.dirty.Load() {
		return s.cached
	}
	s.dirty.Store(false)
	list, err := Load(s.path)
	if err != nil {
		s.log.Warn("watchlist unreadable, keeping previous", "path", s.path, "err", err)
		return s.cached
	}
	s.cached = list
	return list
}

// Targets 合并固定池与用户列表，固定池在前。
func (s *Store) Targets(pool []string) []string {
	return Merge(pool, s.Symbols())
}

func (s *Store) Replace(symbols []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(symbols)
}

// Add 与 Remove 的读-改-写在同一把锁内完成，并发请求不会互相覆盖。
func (s *Store) Add(symbols ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(Merge(s.symbolsLocked(), symbols))
}

func (s *Store) Remove(symbols ...string) ([]string, error) {
	drop := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		drop[Normalize(sym)] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.symbolsLocked()
	kept := make([]string, 0, len(current))
	for _, sym := range current {
		if !drop[sym] {
			kept = append(kept, sym)
		}
	}
	return s.replaceLocked(kept)
}

func (s *Store) replaceLocked(symbols []string) ([]string, error) {
	list := Merge(nil, symbols)
	if err := Save(s.path, list); err != nil {
		return nil, err
	}
	s.cached = list
	s.dirty.Store(false)
	return append([]string(nil), list...), nil
}

// Watch 监听所在目录（原子替换会换掉 inode），直到 ctx 结束。
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	name := filepath.Base(s.path)
	s.watching.Store(true)
	s.dirty.Store(true)
	defer s.watching.Store(false)
	s.log.Info("watching watchlist", "path", s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(evt.Name) != name {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.dirty.Store(true)
				s.log.Debug("watchlist changed", "op", evt.Op.String())
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watchlist watcher error", "err", err)
			s.dirty.Store(true)
		}
	}
}

// IsWatching 报告监听是否在运行。
func (s *Store) IsWatching() bool { return s.watching.Load() }
