package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9991"
	defaultLedgerPath     = "data/local_positions.json"
	defaultTotalCapital   = 100000.0
	defaultExposureRatio  = 0.10
	defaultRSICeiling     = 70.0
	defaultTrailingAct    = 0.10
	defaultTrailingPull   = 0.05
	defaultHardStop       = 0.08
	defaultTimezone       = "Asia/Hong_Kong"
	defaultTickSeconds    = 5
	defaultScanWorkers    = 2
	defaultTaskTimeout    = 120
	defaultShutdown       = 30
	defaultAdvisoryURL    = "https://api.deepseek.com"
	defaultAdvisoryModel  = "deepseek-reasoner"
	defaultAttempts       = 3
	defaultAdvisoryTO     = 30
	defaultTemperature    = 0.1
	defaultBreakerThresh  = 5
	defaultBreakerCool    = 120
	defaultMarketSource   = "binance"
	defaultMarketREST     = "https://fapi.binance.com"
	defaultGateREST       = "https://api.gateio.ws/api/v4"
	defaultGateSettle     = "usdt"
	defaultMarketInterval = "1h"
	defaultHistoryLimit   = 120
	defaultMarketTimeout  = 15
	defaultSymbolSuffix   = "USDT"
	defaultSentiment      = "none"
	defaultSentimentItems = 5
	defaultSentimentTO    = 10
	defaultJournalPath    = "data/journal.db"
	defaultWatchlistPath  = "data/watchlist.json"
	defaultLiveCachePath  = "data/realtime_cache.json"
)

// 港股交易日程：午盘前后各两次，收盘前一次。
var (
	defaultScanTimes  = []string{"10:32", "11:32", "14:02", "15:02", "15:55"}
	defaultSessions   = []SessionWindow{{Start: "09:30", End: "12:00"}, {Start: "13:00", End: "16:00"}}
	defaultWeekdays   = []int{1, 2, 3, 4, 5}
	defaultTargetPool = []string{"00700", "03690", "09988"}
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
	c.Advisory.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Sentiment.applyDefaults(keys)
	applyFieldDefaults(keys,
		boolFieldDefault("journal.enabled", &c.Journal.Enabled, true),
		stringFieldDefault("journal.path", &c.Journal.Path, defaultJournalPath),
		stringFieldDefault("watchlist.path", &c.Watchlist.Path, defaultWatchlistPath),
		stringFieldDefault("livecache.path", &c.LiveCache.Path, defaultLiveCachePath),
	)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("ledger.path", &l.Path, defaultLedgerPath),
		floatFieldDefault("ledger.total_capital", &l.TotalCapital, defaultTotalCapital),
		floatFieldDefault("ledger.max_exposure_ratio", &l.MaxExposureRatio, defaultExposureRatio),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("risk.rsi_ceiling", &r.RSICeiling, defaultRSICeiling),
		floatFieldDefault("risk.trailing_activation_pct", &r.TrailingActivationPct, defaultTrailingAct),
		floatFieldDefault("risk.trailing_pullback_pct", &r.TrailingPullbackPct, defaultTrailingPull),
		floatFieldDefault("risk.hard_stop_pct", &r.HardStopPct, defaultHardStop),
	)
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("schedule.timezone", &s.Timezone, defaultTimezone),
		intFieldDefault("schedule.tick_interval_seconds", &s.TickIntervalSeconds, defaultTickSeconds),
		intFieldDefault("schedule.scan_workers", &s.ScanWorkers, defaultScanWorkers),
		intFieldDefault("schedule.task_timeout_seconds", &s.TaskTimeoutSeconds, defaultTaskTimeout),
		intFieldDefault("schedule.shutdown_timeout_seconds", &s.ShutdownTimeoutSeconds, defaultShutdown),
		boolFieldDefault("schedule.scan_on_start", &s.ScanOnStart, true),
		fieldDefault{
			key:   "schedule.scan_times",
			need:  func() bool { return len(s.ScanTimes) == 0 },
			apply: func() { s.ScanTimes = append([]string(nil), defaultScanTimes...) },
		},
		fieldDefault{
			key:   "schedule.sessions",
			need:  func() bool { return len(s.Sessions) == 0 },
			apply: func() { s.Sessions = append([]SessionWindow(nil), defaultSessions...) },
		},
		fieldDefault{
			key:   "schedule.weekdays",
			need:  func() bool { return len(s.Weekdays) == 0 },
			apply: func() { s.Weekdays = append([]int(nil), defaultWeekdays...) },
		},
		fieldDefault{
			key:   "schedule.target_pool",
			need:  func() bool { return len(s.TargetPool) == 0 },
			apply: func() { s.TargetPool = append([]string(nil), defaultTargetPool...) },
		},
	)
	s.TargetPool = normalizeSymbols(s.TargetPool)
}

func (a *AdvisoryConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("advisory.api_url", &a.APIURL, defaultAdvisoryURL),
		stringFieldDefault("advisory.model", &a.Model, defaultAdvisoryModel),
		intFieldDefault("advisory.attempts", &a.Attempts, defaultAttempts),
		intFieldDefault("advisory.timeout_seconds", &a.TimeoutSeconds, defaultAdvisoryTO),
		floatFieldDefault("advisory.temperature", &a.Temperature, defaultTemperature),
		intFieldDefault("advisory.breaker_threshold", &a.BreakerThreshold, defaultBreakerThresh),
		intFieldDefault("advisory.breaker_cooldown_seconds", &a.BreakerCooldownSeconds, defaultBreakerCool),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.interval", &m.Interval, defaultMarketInterval),
		intFieldDefault("market.history_limit", &m.HistoryLimit, defaultHistoryLimit),
		intFieldDefault("market.timeout_seconds", &m.TimeoutSeconds, defaultMarketTimeout),
		stringFieldDefault("market.symbol_suffix", &m.SymbolSuffix, defaultSymbolSuffix),
	)
	m.Source = strings.ToLower(strings.TrimSpace(m.Source))
	// REST 默认地址随数据源变化
	switch m.Source {
	case "binance":
		applyFieldDefaults(keys, stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST))
	case "gate":
		applyFieldDefaults(keys,
			stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultGateREST),
			stringFieldDefault("market.settle", &m.Settle, defaultGateSettle),
		)
	}
}

func (s *SentimentConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("sentiment.source", &s.Source, defaultSentiment),
		intFieldDefault("sentiment.max_items", &s.MaxItems, defaultSentimentItems),
		intFieldDefault("sentiment.timeout_seconds", &s.TimeoutSeconds, defaultSentimentTO),
	)
	s.Source = strings.ToLower(strings.TrimSpace(s.Source))
}

// 辅助函数

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func normalizeSymbols(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, sym := range in {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
