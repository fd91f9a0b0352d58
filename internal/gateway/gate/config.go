package gate

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	// Settle 结算币种，默认 usdt。
	Settle string
	// SymbolMap 按标的覆盖合约名。
	SymbolMap map[string]string

	RESTProxyURL string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = defaultGateREST
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.Settle = strings.ToLower(strings.TrimSpace(out.Settle))
	if out.Settle == "" {
		out.Settle = "usdt"
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	return out
}

// contract 把引擎代码映射为 Gate 合约名（00700 -> 00700_USDT）。
func (c Config) contract(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if mapped, ok := c.SymbolMap[sym]; ok && strings.TrimSpace(mapped) != "" {
		return strings.ToUpper(strings.TrimSpace(mapped))
	}
	sym = strings.ReplaceAll(sym, "/", "_")
	quote := "_" + strings.ToUpper(c.Settle)
	if sym != "" && !strings.Contains(sym, "_") {
		sym += quote
	}
	return sym
}
