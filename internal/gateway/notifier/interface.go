package notifier

import "context"

// Notifier 投递一条可读告警，实现可以阻塞；
// 调用方经由 Dispatcher 投递，交易循环不会被卡住。
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg StructuredMessage) error
}
