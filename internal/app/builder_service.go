package app

import (
	"fmt"
	"log/slog"
	"strings"

	"quantguard/internal/config"
	"quantguard/internal/gateway/notifier"
	livehttp "quantguard/internal/transport/http/live"
)

// buildSinks 总是包含本地日志通道，其余按配置启用。
func buildSinks(cfg config.NotifyConfig, log *slog.Logger) []notifier.Notifier {
	sinks := []notifier.Notifier{notifier.NewLogNotifier(log)}
	if tg := newTelegram(cfg); tg != nil {
		sinks = append(sinks, tg)
	}
	if cfg.ServerChan.Enabled {
		sinks = append(sinks, notifier.NewServerChan(cfg.ServerChan.SendKey, log))
	}
	return sinks
}

func newTelegram(cfg config.NotifyConfig) *notifier.Telegram {
	if !cfg.Telegram.Enabled {
		return nil
	}
	token := strings.TrimSpace(cfg.Telegram.BotToken)
	chat := strings.TrimSpace(cfg.Telegram.ChatID)
	if token == "" || chat == "" {
		return nil
	}
	return notifier.NewTelegram(token, chat)
}

func buildLiveHTTPServer(cfg config.AppConfig, sc livehttp.ServerConfig) (*livehttp.Server, error) {
	sc.Addr = cfg.HTTPAddr
	server, err := livehttp.NewServer(sc)
	if err != nil {
		return nil, fmt.Errorf("初始化 live HTTP 失败: %w", err)
	}
	return server, nil
}
