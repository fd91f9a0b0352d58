package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"quantguard/internal/pkg/fsutil"
)

// Store 持久化持仓表。资金状态从不持久化。
type Store interface {
	Load() (map[string]Position, error)
	Save(positions map[string]Position) error
}

// FileStore 以 symbol -> position 的 JSON 对象保存快照，每次保存都原子替换，
// 上一份快照保留在 <path>.bak。
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: strings.TrimSpace(path)}
}

func (s *FileStore) Path() string { return s.path }

// Load 读取主快照，主文件缺失或不可读时回落到 .bak。
// 残留的 .tmp 文件从不读取；两者都不存在时为空账本。
func (s *FileStore) Load() (map[string]Position, error) {
	out, err := readSnapshot(s.path)
	if err == nil {
		return out, nil
	}
	primaryErr := err
	out, err = readSnapshot(s.path + fsutil.BackupSuffix)
	if err == nil {
		return out, nil
	}
	if errors.Is(primaryErr, fs.ErrNotExist) && errors.Is(err, fs.ErrNotExist) {
		return map[string]Position{}, nil
	}
	return nil, fmt.Errorf("ledger: load %s: %w", s.path, primaryErr)
}

func (s *FileStore) Save(positions map[string]Position) error {
	if positions == nil {
		positions = map[string]Position{}
	}
	return fsutil.WriteJSONAtomic(s.path, positions, fsutil.WriteOptions{Backup: true})
}

func readSnapshot(path string) (map[string]Position, error) {
	raw := map[string]Position{}
	if err := fsutil.ReadJSON(path, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]Position, len(raw))
	for sym, pos := range raw {
		pos.Symbol = sym
		if pos.validate() != nil {
			continue
		}
		if pos.HighestPrice < pos.CostPrice {
			pos.HighestPrice = pos.CostPrice
		}
		out[sym] = pos
	}
	return out, nil
}

// MemoryStore 是进程内 Store，用于测试与 dry run。
type MemoryStore struct {
	Saved  map[string]Position
	Saves  int
	Err    error
	Loaded map[string]Position
}

func (m *MemoryStore) Load() (map[string]Position, error) {
	out := make(map[string]Position, len(m.Loaded))
	for k, v := range m.Loaded {
		v.Symbol = k
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Save(positions map[string]Position) error {
	m.Saves++
	if m.Err != nil {
		return m.Err
	}
	m.Saved = copyPositions(positions)
	return nil
}
