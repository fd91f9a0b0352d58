package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	// SymbolSuffix 追加到裸标的后（00700 -> 00700USDT）。
	SymbolSuffix string
	// SymbolMap 按标的覆盖交易对。
	SymbolMap map[string]string

	RESTProxyURL string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.SymbolSuffix = strings.ToUpper(strings.TrimSpace(out.SymbolSuffix))
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	return out
}

// pair maps an engine symbol to the exchange pair.
func (c Config) pair(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if mapped, ok := c.SymbolMap[sym]; ok && strings.TrimSpace(mapped) != "" {
		return strings.ToUpper(strings.TrimSpace(mapped))
	}
	sym = strings.ReplaceAll(sym, "/", "")
	if c.SymbolSuffix != "" && !strings.HasSuffix(sym, c.SymbolSuffix) {
		sym += c.SymbolSuffix
	}
	return sym
}
