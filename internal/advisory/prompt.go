package advisory

import (
	"encoding/json"
	"fmt"
	"strings"

	"quantguard/internal/market"
)

const systemPrompt = `You are a battle-tested quantitative trading AI.
Your objective is to analyze the provided HK stock data (price-volume and news sentiment) and make a discrete trading decision.

STRICT OUTPUT RULES:
1. You MUST output ONLY a valid JSON object.
2. No markdown formatting, no conversational text before or after the JSON.
3. The JSON must exactly match this structure:
{
    "action": "BUY" | "SELL" | "HOLD",
    "reason": "A concise, 1-2 sentence explanation of your rationale"
}`

// Request 是一次建议请求的全部输入。
type Request struct {
	Symbol    string
	Snapshot  market.Snapshot
	Sentiment []string
}

func (r Request) userPrompt() string {
	snap := map[string]any{
		"close":     r.Snapshot.Price,
		"RSI_14":    r.Snapshot.RSI,
		"MACD_HIST": r.Snapshot.MACDHist,
		"MACD_DIF":  r.Snapshot.DIF,
		"MACD_DEA":  r.Snapshot.DEA,
		"interval":  r.Snapshot.Interval,
	}
	news := r.Sentiment
	if news == nil {
		news = []string{}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "TARGET ASSET: %s\n", r.Symbol)
	b.WriteString("MARKET DATA SNAPSHOT:\n")
	b.WriteString(indentJSON(snap))
	b.WriteString("\n\nLATEST NEWS/SENTIMENT:\n")
	b.WriteString(indentJSON(news))
	b.WriteString("\n\nBased strictly on this data, provide your JSON decision.\n")
	return b.String()
}

func indentJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}
