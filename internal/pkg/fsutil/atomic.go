package fsutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	TmpSuffix    = ".tmp"
	BackupSuffix = ".bak"
)

// WriteOptions 控制 WriteFileAtomic 的行为。
type WriteOptions struct {
	// Backup 在替换前把上一份完整文件保留为 <path>.bak。
	Backup bool
	Perm   fs.FileMode
}

// WriteFileAtomic 用 data 替换 path，读方只会看到旧的完整内容或新内容，
// 不会读到写了一半的文件。
//
// 步骤：按需把现有文件复制为 .bak，写 .tmp，fsync，
// 把 .tmp rename 到 path，再 fsync 目录。
func WriteFileAtomic(path string, data []byte, opts WriteOptions) error {
	if path == "" {
		return errors.New("fsutil: empty path")
	}
	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsutil: mkdir %s: %w", dir, err)
	}
	if opts.Backup {
		if err := backup(path, perm); err != nil {
			return err
		}
	}
	if err := writeSynced(path+TmpSuffix, data, perm); err != nil {
		return err
	}
	if err := os.Rename(path+TmpSuffix, path); err != nil {
		return fmt.Errorf("fsutil: rename %s: %w", path, err)
	}
	syncDir(dir)
	return nil
}

// WriteJSONAtomic 缩进序列化 v 并经 WriteFileAtomic 写入。
func WriteJSONAtomic(path string, v any, opts WriteOptions) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("fsutil: marshal %s: %w", path, err)
	}
	return WriteFileAtomic(path, data, opts)
}

// backup copies the current file (if any) to path.bak. The canonical file is
// left in place so it never disappears between steps.
func backup(path string, perm fs.FileMode) error {
	prev, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fsutil: read %s for backup: %w", path, err)
	}
	bak := path + BackupSuffix
	if err := writeSynced(bak+TmpSuffix, prev, perm); err != nil {
		return err
	}
	if err := os.Rename(bak+TmpSuffix, bak); err != nil {
		return fmt.Errorf("fsutil: rename %s: %w", bak, err)
	}
	return nil
}

func writeSynced(path string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("fsutil: open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsutil: sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("fsutil: close %s: %w", path, err)
	}
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// ReadJSON 把 path 处的 JSON 文件解码到 v，文件不存在时返回 fs.ErrNotExist。
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("fsutil: decode %s: %w", path, err)
	}
	return nil
}
