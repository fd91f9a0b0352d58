package provider

import "context"

type ChatPayload struct {
	System      string
	User        string
	Temperature float64
	ExpectJSON  bool
	MaxTokens   int
}

// ModelProvider 是一次补全调用的抽象，重试策略由调用方决定。
type ModelProvider interface {
	ID() string
	Model() string
	Call(ctx context.Context, payload ChatPayload) (string, error)
}
