package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quantguard/internal/logger"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 30 * time.Second
)

// Dispatcher 在后台 goroutine 中把消息分发给所有渠道。
// Notify 从不阻塞；队列满时丢弃消息并记录日志。
type Dispatcher struct {
	sinks   []Notifier
	queue   chan StructuredMessage
	log     *slog.Logger
	timeout time.Duration

	once sync.Once
	done chan struct{}
	mu   sync.RWMutex
	shut bool
}

func NewDispatcher(log *slog.Logger, sinks ...Notifier) *Dispatcher {
	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan StructuredMessage, defaultQueueSize),
		log:     logger.OrDiscard(log).With("component", "notifier"),
		timeout: defaultSendTimeout,
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) Sinks() []string {
	out := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		out = append(out, s.Name())
	}
	return out
}

func (d *Dispatcher) Notify(msg StructuredMessage) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.shut {
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.log.Warn("notification dropped: queue full", "title", msg.PlainTitle())
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg StructuredMessage) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := safeSend(ctx, sink, msg)
		cancel()
		if err != nil {
			d.log.Error("notification failed", "channel", sink.Name(), "title", msg.PlainTitle(), "err", err)
		}
	}
}

func safeSend(ctx context.Context, sink Notifier, msg StructuredMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return sink.Send(ctx, msg)
}

type panicError struct{ value any }

func (p panicError) Error() string { return fmt.Sprintf("notifier panic: %v", p.value) }

// Close 停止接收消息，等待队列排空或 ctx 结束。
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.mu.Lock()
		d.shut = true
		close(d.queue)
		d.mu.Unlock()
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
