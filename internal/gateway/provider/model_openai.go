package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quantguard/internal/logger"
)

// 中文说明：
// OpenAIChatClient：兼容 OpenAI / DeepSeek / Qwen 的聊天补全接口（/chat/completions）。
// 单次调用不做重试，由上层的建议客户端统一控制次数。

type OpenAIChatClient struct {
	id           string
	BaseURL      string
	APIKey       string
	ModelName    string
	Timeout      time.Duration
	ExtraHeaders map[string]string
	HTTPClient   *http.Client
	log          *slog.Logger
}

// StatusError 表示非 2xx 响应。存在 Retry-After 头时解析到 RetryAfter。
type StatusError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.Code, e.Message)
}

// Retryable 对 429 与 5xx 返回 true。
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

var ErrEmptyChoices = errors.New("provider: empty choices")

func NewOpenAIChatClient(id, baseURL, apiKey, model string, timeout time.Duration, log *slog.Logger) *OpenAIChatClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIChatClient{
		id:         id,
		BaseURL:    baseURL,
		APIKey:     apiKey,
		ModelName:  model,
		Timeout:    timeout,
		HTTPClient: &http.Client{Timeout: timeout},
		log:        logger.OrDiscard(log).With("component", "provider", "provider", id),
	}
}

func (c *OpenAIChatClient) ID() string    { return c.id }
func (c *OpenAIChatClient) Model() string { return c.ModelName }

func (c *OpenAIChatClient) endpoint() string {
	// 规范化 BaseURL，避免用户把完整的 /chat/completions 也写进了配置导致重复路径
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIChatClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if payload.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": payload.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": payload.User})

	body := map[string]any{
		"model":       c.ModelName,
		"messages":    messages,
		"temperature": payload.Temperature,
		"stream":      false,
	}
	if payload.MaxTokens > 0 {
		body["max_tokens"] = payload.MaxTokens
	}
	if payload.ExpectJSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("provider: marshal request: %w", err)
	}

	url := c.endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}
	c.log.Debug("chat request", "url", url, "auth", maskKey(c.APIKey), "bytes", len(b))

	httpc := c.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: c.Timeout}
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", statusError(resp)
	}
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("provider: decode response: %w", err)
	}
	if len(r.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return r.Choices[0].Message.Content, nil
}

func statusError(resp *http.Response) error {
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &eresp)
	msg := strings.TrimSpace(eresp.Error.Message)
	if msg == "" {
		msg = resp.Status
	}
	out := &StatusError{Code: resp.StatusCode, Message: msg}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			out.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return out
}

// 掩码 Bearer 密钥，仅展示后 4 位
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
