package config

import (
	"fmt"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	if err := c.Advisory.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Sentiment.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		return fmt.Errorf("journal.path cannot be empty when journal is enabled")
	}
	return nil
}

func (l LedgerConfig) validate() error {
	if strings.TrimSpace(l.Path) == "" {
		return fmt.Errorf("ledger.path cannot be empty")
	}
	if l.TotalCapital <= 0 {
		return fmt.Errorf("ledger.total_capital must be > 0")
	}
	if l.MaxExposureRatio <= 0 || l.MaxExposureRatio > 1 {
		return fmt.Errorf("ledger.max_exposure_ratio must be in (0, 1]")
	}
	return nil
}

func (r RiskConfig) validate() error {
	if r.RSICeiling <= 0 || r.RSICeiling > 100 {
		return fmt.Errorf("risk.rsi_ceiling must be in (0, 100]")
	}
	if r.TrailingActivationPct < 0 {
		return fmt.Errorf("risk.trailing_activation_pct must be >= 0")
	}
	if r.TrailingPullbackPct <= 0 || r.TrailingPullbackPct >= 1 {
		return fmt.Errorf("risk.trailing_pullback_pct must be in (0, 1)")
	}
	if r.HardStopPct <= 0 || r.HardStopPct >= 1 {
		return fmt.Errorf("risk.hard_stop_pct must be in (0, 1)")
	}
	return nil
}

func (s ScheduleConfig) validate() error {
	if _, err := time.LoadLocation(strings.TrimSpace(s.Timezone)); err != nil {
		return fmt.Errorf("schedule.timezone invalid: %w", err)
	}
	if s.TickIntervalSeconds < 1 {
		return fmt.Errorf("schedule.tick_interval_seconds must be >= 1")
	}
	if s.ScanWorkers < 1 {
		return fmt.Errorf("schedule.scan_workers must be >= 1")
	}
	if s.TaskTimeoutSeconds < 1 {
		return fmt.Errorf("schedule.task_timeout_seconds must be >= 1")
	}
	if s.ShutdownTimeoutSeconds < 1 {
		return fmt.Errorf("schedule.shutdown_timeout_seconds must be >= 1")
	}
	for _, raw := range s.ScanTimes {
		if _, err := ParseClock(raw); err != nil {
			return fmt.Errorf("schedule.scan_times: %w", err)
		}
	}
	if len(s.Sessions) == 0 {
		return fmt.Errorf("schedule.sessions requires at least one window")
	}
	for i, w := range s.Sessions {
		start, err := ParseClock(w.Start)
		if err != nil {
			return fmt.Errorf("schedule.sessions[%d].start: %w", i, err)
		}
		end, err := ParseClock(w.End)
		if err != nil {
			return fmt.Errorf("schedule.sessions[%d].end: %w", i, err)
		}
		if start >= end {
			return fmt.Errorf("schedule.sessions[%d] start must be before end", i)
		}
	}
	for _, d := range s.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("schedule.weekdays contains invalid day %d", d)
		}
	}
	if len(s.TargetPool) == 0 {
		return fmt.Errorf("schedule.target_pool cannot be empty")
	}
	return nil
}

func (a AdvisoryConfig) validate() error {
	if strings.TrimSpace(a.APIURL) == "" {
		return fmt.Errorf("advisory.api_url cannot be empty")
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("advisory.model cannot be empty")
	}
	if a.Attempts < 1 {
		return fmt.Errorf("advisory.attempts must be >= 1")
	}
	if a.TimeoutSeconds < 1 {
		return fmt.Errorf("advisory.timeout_seconds must be >= 1")
	}
	if a.BreakerThreshold < 0 {
		return fmt.Errorf("advisory.breaker_threshold must be >= 0")
	}
	return nil
}

func (m MarketConfig) validate() error {
	switch m.Source {
	case "binance", "gate":
		if strings.TrimSpace(m.RESTBaseURL) == "" {
			return fmt.Errorf("market.rest_base_url cannot be empty for %s", m.Source)
		}
	case "static":
	default:
		return fmt.Errorf("market.source must be binance, gate or static, got %q", m.Source)
	}
	if m.HistoryLimit < 30 {
		return fmt.Errorf("market.history_limit must be >= 30 to compute indicators")
	}
	return nil
}

func (s SentimentConfig) validate() error {
	switch s.Source {
	case "http":
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("sentiment.url is required when source=http")
		}
	case "none":
	default:
		return fmt.Errorf("sentiment.source must be http or none, got %q", s.Source)
	}
	return nil
}

func (n NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

// ParseClock 解析 HH:MM，返回当天零点起的偏移。
func ParseClock(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q (want HH:MM)", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
