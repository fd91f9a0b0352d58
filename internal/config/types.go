package config

import (
	"strings"
	"time"
	// 容器镜像里常缺 zoneinfo，内置一份以保证 Asia/Hong_Kong 可解析。
	_ "time/tzdata"
)

// Config 是 quantguard 的主配置载体。
type Config struct {
	Include   []string        `yaml:"include,omitempty"`
	App       AppConfig       `yaml:"app"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Risk      RiskConfig      `yaml:"risk"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Advisory  AdvisoryConfig  `yaml:"advisory"`
	Market    MarketConfig    `yaml:"market"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Notify    NotifyConfig    `yaml:"notify"`
	Journal   JournalConfig   `yaml:"journal"`
	Watchlist WatchlistConfig `yaml:"watchlist"`
	LiveCache LiveCacheConfig `yaml:"livecache"`
}

type AppConfig struct {
	Env             string `yaml:"env"`
	LogLevel        string `yaml:"log_level"`
	LogPath         string `yaml:"log_path"`
	HTTPAddr        string `yaml:"http_addr"`
	AdvisoryLogPath string `yaml:"advisory_log_path"`
	AdvisoryDump    bool   `yaml:"advisory_dump"`
}

type LedgerConfig struct {
	Path             string  `yaml:"path"`
	TotalCapital     float64 `yaml:"total_capital"`
	MaxExposureRatio float64 `yaml:"max_exposure_ratio"`
}

type RiskConfig struct {
	RSICeiling            float64 `yaml:"rsi_ceiling"`
	TrailingActivationPct float64 `yaml:"trailing_activation_pct"`
	TrailingPullbackPct   float64 `yaml:"trailing_pullback_pct"`
	HardStopPct           float64 `yaml:"hard_stop_pct"`
}

// SessionWindow 是一个交易时段，格式 HH:MM。
type SessionWindow struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type ScheduleConfig struct {
	Timezone               string          `yaml:"timezone"`
	TickIntervalSeconds    int             `yaml:"tick_interval_seconds"`
	ScanTimes              []string        `yaml:"scan_times"`
	ScanOnStart            bool            `yaml:"scan_on_start"`
	ScanWorkers            int             `yaml:"scan_workers"`
	TaskTimeoutSeconds     int             `yaml:"task_timeout_seconds"`
	ShutdownTimeoutSeconds int             `yaml:"shutdown_timeout_seconds"`
	Sessions               []SessionWindow `yaml:"sessions"`
	// Weekdays 使用 time.Weekday 编号（0 = 周日）。
	Weekdays   []int    `yaml:"weekdays"`
	TargetPool []string `yaml:"target_pool"`
}

func (s ScheduleConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalSeconds) * time.Second
}

func (s ScheduleConfig) TaskTimeout() time.Duration {
	return time.Duration(s.TaskTimeoutSeconds) * time.Second
}

func (s ScheduleConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// Location 解析时区；校验阶段已保证可用。
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(s.Timezone))
	if err != nil {
		return time.Local
	}
	return loc
}

type AdvisoryConfig struct {
	APIURL                 string  `yaml:"api_url"`
	APIKey                 string  `yaml:"api_key"`
	Model                  string  `yaml:"model"`
	Attempts               int     `yaml:"attempts"`
	TimeoutSeconds         int     `yaml:"timeout_seconds"`
	Temperature            float64 `yaml:"temperature"`
	BreakerThreshold       int     `yaml:"breaker_threshold"`
	BreakerCooldownSeconds int     `yaml:"breaker_cooldown_seconds"`
}

func (a AdvisoryConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func (a AdvisoryConfig) BreakerCooldown() time.Duration {
	return time.Duration(a.BreakerCooldownSeconds) * time.Second
}

type MarketConfig struct {
	Source         string `yaml:"source"`
	RESTBaseURL    string `yaml:"rest_base_url"`
	Interval       string `yaml:"interval"`
	HistoryLimit   int    `yaml:"history_limit"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// SymbolSuffix 在把池内标的映射为交易对时追加。
	SymbolSuffix string            `yaml:"symbol_suffix"`
	// Settle 仅 gate 使用。
	Settle       string            `yaml:"settle,omitempty"`
	SymbolMap    map[string]string `yaml:"symbol_map,omitempty"`
	ProxyURL     string            `yaml:"proxy_url,omitempty"`
	// StaticPrices 为 static 数据源提供基准价（symbol -> 价格）。
	StaticPrices map[string]float64 `yaml:"static_prices,omitempty"`
}

func (m MarketConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

type SentimentConfig struct {
	Source         string `yaml:"source"`
	URL            string `yaml:"url"`
	MaxItems       int    `yaml:"max_items"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (s SentimentConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type NotifyConfig struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	ServerChan ServerChanConfig `yaml:"serverchan"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type ServerChanConfig struct {
	Enabled bool   `yaml:"enabled"`
	SendKey string `yaml:"send_key"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type WatchlistConfig struct {
	Path string `yaml:"path"`
}

type LiveCacheConfig struct {
	Path string `yaml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
