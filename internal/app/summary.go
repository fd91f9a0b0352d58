package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"quantguard/internal/config"
	"quantguard/internal/risk"
)

type StartupSummary struct {
	Env          string
	Pool         []string
	Targets      []string
	Positions    int
	Capital      float64
	Exposure     float64
	Rules        risk.StopRules
	RSICeiling   float64
	Timezone     string
	Sessions     []config.SessionWindow
	ScanTimes    []string
	TickInterval time.Duration
	Workers      int
	Model        string
	MarketSource string
	Sentiment    string
	Notifiers    []string
	HTTPAddr     string
	JournalPath  string

	out io.Writer
}

func (s *StartupSummary) Print() {
	w := s.out
	if w == nil {
		w = os.Stdout
	}
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[标的 (TARGETS)]")
	fmt.Fprintf(w, "  环境: %s\n", s.Env)
	fmt.Fprintf(w, "  固定股票池: %s\n", formatList(s.Pool))
	fmt.Fprintf(w, "  合并自选后: %s\n", formatList(s.Targets))
	fmt.Fprintf(w, "  当前持仓数: %d\n", s.Positions)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[风控 (RISK)]")
	fmt.Fprintf(w, "  总资金: %.2f  单票上限: %.0f%%\n", s.Capital, s.Exposure*100)
	fmt.Fprintf(w, "  移动止盈: 浮盈≥%.0f%% 后回撤≥%.0f%%\n", s.Rules.TrailingActivation*100, s.Rules.TrailingPullback*100)
	fmt.Fprintf(w, "  硬止损: 亏损≥%.0f%%\n", s.Rules.HardStop*100)
	fmt.Fprintf(w, "  RSI 上限: %.0f\n", s.RSICeiling)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[调度 (SCHEDULE)]")
	fmt.Fprintf(w, "  时区: %s\n", s.Timezone)
	sessions := make([]string, 0, len(s.Sessions))
	for _, ss := range s.Sessions {
		sessions = append(sessions, ss.Start+"-"+ss.End)
	}
	fmt.Fprintf(w, "  交易时段: %s\n", formatList(sessions))
	fmt.Fprintf(w, "  深度扫描: %s (并发 %d)\n", formatList(s.ScanTimes), s.Workers)
	fmt.Fprintf(w, "  盯盘间隔: %s\n", s.TickInterval)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[外部服务 (SERVICES)]")
	fmt.Fprintf(w, "  建议模型: %s\n", s.Model)
	fmt.Fprintf(w, "  行情源: %s  新闻源: %s\n", s.MarketSource, s.Sentiment)
	fmt.Fprintf(w, "  通知通道: %s\n", formatList(s.Notifiers))
	fmt.Fprintf(w, "  HTTP: %s\n", s.HTTPAddr)
	journal := s.JournalPath
	if journal == "" {
		journal = "(disabled)"
	}
	fmt.Fprintf(w, "  审计日志: %s\n", journal)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
