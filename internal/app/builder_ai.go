package app

import (
	"fmt"
	"log/slog"
	"time"

	"quantguard/internal/config"
	"quantguard/internal/gateway/notifier"
	"quantguard/internal/gateway/provider"
	"quantguard/internal/pkg/circuit"
)

func buildModelProvider(cfg config.AdvisoryConfig, log *slog.Logger) (provider.ModelProvider, error) {
	model, err := provider.Build(provider.ModelCfg{
		APIURL:  cfg.APIURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout(),
	}, log)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		log.Warn("advisory api_key is empty; every decision will fall back to HOLD")
	}
	log.Info("✓ 建议服务", "id", model.ID(), "model", model.Model(), "attempts", cfg.Attempts)
	return model, nil
}

// newAdvisoryBreaker 熔断打开/恢复时推送一条告警。
func newAdvisoryBreaker(cfg config.AdvisoryConfig, alerts *notifier.Dispatcher, log *slog.Logger) *circuit.CircuitBreaker {
	if cfg.BreakerThreshold <= 0 {
		return nil
	}
	cb := circuit.NewCircuitBreaker("advisory", cfg.BreakerThreshold, cfg.BreakerCooldown(), log)
	cb.SetStateChangeHandler(func(name string, from, to circuit.State) {
		if to != circuit.StateOpen && from != circuit.StateOpen {
			return
		}
		alerts.Notify(notifier.StructuredMessage{
			Icon:  "⚠️",
			Title: fmt.Sprintf("建议服务熔断 %s: %s → %s", name, from, to),
			Sections: []notifier.MessageSection{{
				Title: "说明",
				Lines: []string{
					fmt.Sprintf("连续失败阈值: %d", cfg.BreakerThreshold),
					fmt.Sprintf("冷却时间: %s", cfg.BreakerCooldown()),
					"熔断期间所有深度分析直接返回 HOLD。",
				},
			}},
			Timestamp: time.Now(),
		})
	})
	return cb
}
