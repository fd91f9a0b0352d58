package notifier

import (
	"context"
	"log/slog"

	"quantguard/internal/logger"
)

// LogNotifier 把告警写入进程日志。始终注册，未配置推送渠道时告警也可见。
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.OrDiscard(log).With("component", "notifier", "channel", "log")}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Send(_ context.Context, msg StructuredMessage) error {
	l.log.Info("alert", "title", msg.PlainTitle(), "body", msg.RenderMarkdown())
	return nil
}
