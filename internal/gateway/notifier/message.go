package notifier

import (
	"fmt"
	"strings"
	"time"
)

const maxStructuredMessageLen = 3800

// MessageSection 表示通知中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 描述统一格式的推送，各通道自行渲染。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Markdown 文本，自动裁剪长度。
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	header := strings.TrimSpace(strings.TrimSpace(m.Icon + " " + m.Title))
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	if block := renderSections(m.Sections); block != "" {
		b.WriteString(block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer))
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxStructuredMessageLen {
		body = body[:maxStructuredMessageLen] + "..."
	}
	return body
}

func renderSections(secs []MessageSection) string {
	hasContent := false
	for _, sec := range secs {
		if len(sanitizeLines(sec.Lines)) > 0 {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for idx, sec := range secs {
		lines := sanitizeLines(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		title := strings.TrimSpace(sec.Title)
		if title != "" {
			b.WriteString(sanitize(title))
			b.WriteString("\n")
		}
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(sanitize(line))
			b.WriteString("\n")
		}
		if idx != len(secs)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("```\n\n")
	return b.String()
}

func sanitizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "```", "'''")
	return s
}

// PlainTitle 是去掉 markdown 的标题，用作推送标题。
func (m StructuredMessage) PlainTitle() string {
	return strings.TrimSpace(strings.TrimSpace(m.Icon + " " + m.Title))
}

// TradeEvent 是风控链路产生的一次持仓变更或最终决策。
type TradeEvent struct {
	Symbol string
	Action string
	Reason string
	Price  float64
	Volume int
	Source string
	At     time.Time
}

// TradeAlert 以统一格式渲染一次持仓变更。
func TradeAlert(ev TradeEvent) StructuredMessage {
	icon := "📌"
	switch ev.Action {
	case "BUY":
		icon = "🟢"
	case "SELL", "SELL_ALL":
		icon = "🔴"
	}
	lines := []string{
		fmt.Sprintf("标的: %s", ev.Symbol),
		fmt.Sprintf("动作: %s", ev.Action),
		fmt.Sprintf("价格: %.3f", ev.Price),
	}
	if ev.Volume > 0 {
		lines = append(lines, fmt.Sprintf("数量: %d", ev.Volume))
	}
	if ev.Source != "" {
		lines = append(lines, fmt.Sprintf("来源: %s", ev.Source))
	}
	return StructuredMessage{
		Icon:  icon,
		Title: fmt.Sprintf("【量化信号】%s 执行 %s", ev.Symbol, ev.Action),
		Sections: []MessageSection{
			{Title: "执行", Lines: lines},
			{Title: "AI与风控综合理由", Lines: []string{ev.Reason}},
		},
		Footer:    "请及时前往券商APP进行复核下单。",
		Timestamp: ev.At,
	}
}
