package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"quantguard/internal/logger"
)

const (
	Prefix          = "【市场新闻】"
	DefaultMaxItems = 5
	symbolToken     = "{symbol}"
)

// 常见新闻接口的标题路径，按顺序尝试。
var titlePaths = []string{
	"data.#.title",
	"data.list.#.title",
	"items.#.title",
	"#.title",
	"#.新闻标题",
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Feed 从 HTTP JSON 新闻接口拉取个股标题。URL 中的 {symbol} 会被替换，
// 没有占位符时以 symbol 查询参数追加。
type Feed struct {
	URL      string
	MaxItems int
	Client   *http.Client
	log      *slog.Logger
}

func NewFeed(rawURL string, maxItems int, timeout time.Duration, log *slog.Logger) *Feed {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Feed{
		URL:      strings.TrimSpace(rawURL),
		MaxItems: maxItems,
		Client:   &http.Client{Timeout: timeout},
		log:      logger.OrDiscard(log).With("component", "news"),
	}
}

func (f *Feed) endpoint(symbol string) (string, error) {
	if strings.Contains(f.URL, symbolToken) {
		return strings.ReplaceAll(f.URL, symbolToken, url.QueryEscape(symbol)), nil
	}
	u, err := url.Parse(f.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("symbol", symbol)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Headlines 返回最多 MaxItems 条带前缀的标题；没有新闻不是错误。
func (f *Feed) Headlines(ctx context.Context, symbol string) ([]string, error) {
	target, err := f.endpoint(symbol)
	if err != nil {
		return nil, fmt.Errorf("news: bad url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "application/json")
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("news: status=%d for %s", resp.StatusCode, symbol)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("news: read body: %w", err)
	}
	titles := ExtractTitles(raw, f.MaxItems)
	if len(titles) == 0 {
		f.log.Warn("no headlines", "symbol", symbol)
	}
	return titles, nil
}

// ExtractTitles 从 JSON 载荷中取出标题并加上前缀。
func ExtractTitles(raw []byte, limit int) []string {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	doc := gjson.ParseBytes(raw)
	for _, path := range titlePaths {
		res := doc.Get(path)
		if !res.Exists() || !res.IsArray() {
			continue
		}
		out := make([]string, 0, limit)
		res.ForEach(func(_, v gjson.Result) bool {
			title := strings.TrimSpace(v.String())
			if title != "" {
				out = append(out, Prefix+title)
			}
			return len(out) < limit
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
