package provider

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

type ModelCfg struct {
	ID, APIURL, APIKey, Model string
	Headers                   map[string]string
	Timeout                   time.Duration
}

// Build 校验配置并构造 OpenAI 兼容客户端。未配置 ID 时从 host 推导。
func Build(cfg ModelCfg, log *slog.Logger) (ModelProvider, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("provider: model is required")
	}
	u, err := url.Parse(strings.TrimSpace(cfg.APIURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("provider: invalid api_url %q", cfg.APIURL)
	}
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		id = fmt.Sprintf("%s:%s", u.Hostname(), cfg.Model)
	}
	client := NewOpenAIChatClient(id, cfg.APIURL, cfg.APIKey, cfg.Model, cfg.Timeout, log)
	client.ExtraHeaders = cfg.Headers
	return client, nil
}
