package notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quantguard/internal/logger"
)

const serverChanAPI = "https://sctapi.ftqq.com"

// ServerChan 通过 Server酱 推送到微信/手机。未配置真实 SendKey 时只在本地打印。
type ServerChan struct {
	SendKey string
	APIBase string
	Client  *http.Client
	log     *slog.Logger
}

func NewServerChan(sendKey string, log *slog.Logger) *ServerChan {
	return &ServerChan{
		SendKey: strings.TrimSpace(sendKey),
		APIBase: serverChanAPI,
		Client:  &http.Client{Timeout: 10 * time.Second},
		log:     logger.OrDiscard(log).With("component", "notifier", "channel", "serverchan"),
	}
}

func (s *ServerChan) Name() string { return "serverchan" }

// Configured 判断是否配置了真实 key。占位 key 以 "SCTx" 开头。
func (s *ServerChan) Configured() bool {
	return s.SendKey != "" && !strings.HasPrefix(s.SendKey, "SCTx")
}

func (s *ServerChan) Send(ctx context.Context, msg StructuredMessage) error {
	if !s.Configured() {
		s.log.Info("push intercepted: serverchan key not configured", "title", msg.PlainTitle())
		return nil
	}
	base := strings.TrimRight(s.APIBase, "/")
	if base == "" {
		base = serverChanAPI
	}
	form := url.Values{}
	form.Set("title", msg.PlainTitle())
	form.Set("desp", msg.RenderMarkdown())
	endpoint := fmt.Sprintf("%s/%s.send", base, s.SendKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("serverchan: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("serverchan status=%d", resp.StatusCode)
	}
	return nil
}
