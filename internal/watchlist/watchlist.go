package watchlist

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"quantguard/internal/pkg/fsutil"
)

// Normalize 统一代码格式：去空白、转大写、去掉 .HK 后缀。
func Normalize(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.TrimSuffix(sym, ".HK")
}

// Merge 返回 pool 后接 extra，经过规范化与去重。
func Merge(pool, extra []string) []string {
	out := make([]string, 0, len(pool)+len(extra))
	seen := make(map[string]bool, len(pool)+len(extra))
	for _, list := range [][]string{pool, extra} {
		for _, raw := range list {
			sym := Normalize(raw)
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

// Load 读取 JSON 数组形式的标的列表，文件不存在视为空列表。
func Load(path string) ([]string, error) {
	var raw []string
	if err := fsutil.ReadJSON(path, &raw); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("watchlist: %w", err)
	}
	return Merge(nil, raw), nil
}

// Save 原子写入标的列表（tmp、fsync、rename）。
func Save(path string, symbols []string) error {
	list := Merge(nil, symbols)
	if list == nil {
		list = []string{}
	}
	return fsutil.WriteJSONAtomic(path, list, fsutil.WriteOptions{})
}
