package app

import (
	"fmt"
	"log/slog"
	"strings"

	"quantguard/internal/config"
	"quantguard/internal/gateway/binance"
	"quantguard/internal/gateway/gate"
	"quantguard/internal/gateway/news"
	"quantguard/internal/market"
)

// MarketStack 汇总行情相关依赖。
type MarketStack struct {
	Name     string
	Provider market.DataProvider
}

func buildMarketStack(cfg config.MarketConfig) (*MarketStack, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "static":
		src := market.NewStaticSource(cfg.StaticPrices)
		return &MarketStack{
			Name:     "static",
			Provider: market.NewIndicatorProvider(src, src, cfg.Interval, cfg.HistoryLimit),
		}, nil
	case "", "binance":
		src, err := binance.New(binance.Config{
			RESTBaseURL:  cfg.RESTBaseURL,
			HTTPTimeout:  cfg.Timeout(),
			SymbolSuffix: cfg.SymbolSuffix,
			SymbolMap:    cfg.SymbolMap,
			RESTProxyURL: cfg.ProxyURL,
		})
		if err != nil {
			return nil, err
		}
		return &MarketStack{
			Name:     "binance",
			Provider: market.NewIndicatorProvider(src, src, cfg.Interval, cfg.HistoryLimit),
		}, nil
	case "gate":
		src, err := gate.New(gate.Config{
			RESTBaseURL:  cfg.RESTBaseURL,
			HTTPTimeout:  cfg.Timeout(),
			Settle:       cfg.Settle,
			SymbolMap:    cfg.SymbolMap,
			RESTProxyURL: cfg.ProxyURL,
		})
		if err != nil {
			return nil, err
		}
		return &MarketStack{
			Name:     "gate",
			Provider: market.NewIndicatorProvider(src, src, cfg.Interval, cfg.HistoryLimit),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported market.source %q", cfg.Source)
	}
}

func buildSentiment(cfg config.SentimentConfig, log *slog.Logger) market.SentimentProvider {
	if cfg.Source == "http" && strings.TrimSpace(cfg.URL) != "" {
		log.Info("✓ 新闻源", "url", cfg.URL, "max_items", cfg.MaxItems)
		return news.NewFeed(cfg.URL, cfg.MaxItems, cfg.Timeout(), log)
	}
	return market.NoSentiment{}
}
