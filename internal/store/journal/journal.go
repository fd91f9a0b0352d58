package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DefaultListLimit = 50
	maxListLimit     = 500
)

var ErrClosed = errors.New("journal: closed")

// Journal 是决策与成交的审计日志，只追加不修改。
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

// Open 在 path 创建 sqlite 文件（WAL 模式）并迁移表结构。
func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return FromDB(db)
}

// FromDB 包装已有的 gorm 连接。
func FromDB(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := db.AutoMigrate(&DecisionRecord{}, &TradeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) RecordDecision(ctx context.Context, rec *DecisionRecord) error {
	if j == nil || j.db == nil {
		return ErrClosed
	}
	if rec == nil {
		return errors.New("decision record cannot be nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = j.now().UTC()
	}
	return j.db.WithContext(ctx).Create(rec).Error
}

func (j *Journal) RecordTrade(ctx context.Context, rec *TradeRecord) error {
	if j == nil || j.db == nil {
		return ErrClosed
	}
	if rec == nil {
		return errors.New("trade record cannot be nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = j.now().UTC()
	}
	return j.db.WithContext(ctx).Create(rec).Error
}

// ListDecisions 按时间倒序返回；symbol 为空时列出全部标的。
func (j *Journal) ListDecisions(ctx context.Context, symbol string, limit int) ([]DecisionRecord, error) {
	if j == nil || j.db == nil {
		return nil, ErrClosed
	}
	var rows []DecisionRecord
	if err := j.query(ctx, symbol, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (j *Journal) ListTrades(ctx context.Context, symbol string, limit int) ([]TradeRecord, error) {
	if j == nil || j.db == nil {
		return nil, ErrClosed
	}
	var rows []TradeRecord
	if err := j.query(ctx, symbol, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (j *Journal) query(ctx context.Context, symbol string, limit int) *gorm.DB {
	q := j.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		q = q.Where("symbol = ?", sym)
	}
	return q.Limit(clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	j.db = nil
	return sqlDB.Close()
}
