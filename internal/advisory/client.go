package advisory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"quantguard/internal/decision"
	"quantguard/internal/gateway/provider"
	"quantguard/internal/logger"
	"quantguard/internal/pkg/circuit"
)

const (
	DefaultAttempts = 3
	maxBackoff      = 8 * time.Second
)

// Result 是 Decide 的完整输出。Decision 永远有效：失败时为 HOLD 兜底。
type Result struct {
	Decision decision.Decision
	Attempts int
	Latency  time.Duration
	Fallback bool
	Err      error
}

type Options struct {
	Attempts    int
	Temperature float64
	Breaker     *circuit.CircuitBreaker
	Payloads    *logger.PayloadLog
	// Backoff 返回第 n 次尝试后的等待时长（n 从 1 开始），nil 使用默认退避。
	Backoff func(n int) time.Duration
}

// Client 调用建议服务，带有限次重试与强制 HOLD 兜底。
type Client struct {
	model       provider.ModelProvider
	attempts    int
	temperature float64
	breaker     *circuit.CircuitBreaker
	payloads    *logger.PayloadLog
	backoff     func(n int) time.Duration
	log         *slog.Logger
}

func NewClient(model provider.ModelProvider, opts Options, log *slog.Logger) *Client {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = defaultBackoff
	}
	return &Client{
		model:       model,
		attempts:    attempts,
		temperature: opts.Temperature,
		breaker:     opts.Breaker,
		payloads:    opts.Payloads,
		backoff:     backoff,
		log:         logger.OrDiscard(log).With("component", "advisory"),
	}
}

// 基本指数退避：0.8s, 1.6s, 3.2s ...
func defaultBackoff(n int) time.Duration {
	wait := 800 * time.Millisecond << (n - 1)
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}

// Decide 从不返回错误，所有失败路径都给出 decision.Fallback()。
func (c *Client) Decide(ctx context.Context, req Request) Result {
	start := time.Now()
	if c.model == nil {
		return c.fallback(req.Symbol, 0, start, errors.New("advisory: no model configured"))
	}
	if !c.breaker.Allow() {
		c.log.Warn("advisory skipped: circuit open", "symbol", req.Symbol)
		return c.fallback(req.Symbol, 0, start, ErrCircuitOpen)
	}

	payload := provider.ChatPayload{
		System:      systemPrompt,
		User:        req.userPrompt(),
		Temperature: c.temperature,
	}
	c.payloads.Request(req.Symbol, payload.System, payload.User)
	c.log.Info("requesting decision", "symbol", req.Symbol, "model", c.model.Model())

	var lastErr error
	attempt := 0
	for attempt < c.attempts {
		attempt++
		d, err := c.try(ctx, req.Symbol, payload)
		if err == nil {
			c.breaker.RecordSuccess()
			latency := time.Since(start)
			c.log.Info("decision received",
				"symbol", req.Symbol,
				"action", d.Action,
				"reason", d.Reason,
				"attempt", attempt,
				"latency", latency.Round(time.Millisecond),
			)
			return Result{Decision: d, Attempts: attempt, Latency: latency}
		}
		lastErr = err
		c.log.Error("advisory attempt failed", "symbol", req.Symbol, "attempt", attempt, "of", c.attempts, "err", err)
		if attempt >= c.attempts {
			break
		}
		if !sleepCtx(ctx, c.wait(attempt, err)) {
			lastErr = errors.Join(lastErr, ctx.Err())
			break
		}
	}
	c.breaker.RecordFailure()
	return c.fallback(req.Symbol, attempt, start, lastErr)
}

func (c *Client) try(ctx context.Context, symbol string, payload provider.ChatPayload) (decision.Decision, error) {
	raw, err := c.model.Call(ctx, payload)
	if err != nil {
		return decision.Decision{}, err
	}
	c.payloads.Response(symbol, raw)
	return parseResponse(raw)
}

func (c *Client) wait(attempt int, err error) time.Duration {
	wait := c.backoff(attempt)
	var se *provider.StatusError
	if errors.As(err, &se) && se.RetryAfter > wait {
		wait = se.RetryAfter
	}
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}

func (c *Client) fallback(symbol string, attempts int, start time.Time, err error) Result {
	c.log.Error("advisory exhausted, forcing HOLD", "symbol", symbol, "attempts", attempts, "err", err)
	return Result{
		Decision: decision.Fallback(),
		Attempts: attempts,
		Latency:  time.Since(start),
		Fallback: true,
		Err:      err,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
