package market

import (
	"strconv"
	"strings"
	"time"
)

// DefaultKlineGrace 是判断最后一根 K 线是否已收盘时容忍的延迟。
const DefaultKlineGrace = 5 * time.Second

// ParseInterval 解析交易所风格的周期，如 15m、1h、1d、1w。
func ParseInterval(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// DropUnclosed 在最后一根 K 线尚未收盘时将其去掉，指标只使用已收盘的 K 线。
func DropUnclosed(bars []Candle, interval time.Duration, now time.Time, grace time.Duration) []Candle {
	if len(bars) == 0 || interval <= 0 {
		return bars
	}
	if grace < 0 {
		grace = 0
	}
	last := bars[len(bars)-1]
	if last.OpenTime <= 0 {
		return bars
	}
	cutoff := last.OpenTime + interval.Milliseconds() + grace.Milliseconds()
	if now.UnixMilli() < cutoff {
		return bars[:len(bars)-1]
	}
	return bars
}
