// Package sentry 把批量任务的失败上报到 Sentry
package sentry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// Client Sentry 客户端，使用独立的 Hub，不影响全局 SDK 状态
type Client struct {
	hub    *sentry.Hub
	config *Config
	closed atomic.Bool

	captured atomic.Uint64
	dropped  atomic.Uint64
}

// Option 调整 SDK 选项
type Option func(*sentry.ClientOptions)

// WithBeforeSend 发送前回调，返回 nil 时丢弃事件
func WithBeforeSend(fn func(*sentry.Event, *sentry.EventHint) *sentry.Event) Option {
	return func(o *sentry.ClientOptions) {
		o.BeforeSend = fn
	}
}

// New 创建 Sentry 客户端
func New(cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := cfg.toClientOptions()
	for _, opt := range opts {
		opt(&options)
	}

	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(cfg.Tags)
	})

	return &Client{hub: hub, config: cfg}, nil
}

// CaptureError 上报错误，tags 用于检索，extra 作为名为 name 的上下文附加
// 返回事件 ID，被采样或回调丢弃时为空
func (c *Client) CaptureError(err error, tags map[string]string, name string, extra map[string]interface{}) string {
	if c.closed.Load() || err == nil {
		return ""
	}

	var id *sentry.EventID
	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if len(extra) > 0 {
			scope.SetContext(name, extra)
		}
		id = c.hub.CaptureException(err)
	})

	if id == nil || *id == "" {
		c.dropped.Add(1)
		return ""
	}
	c.captured.Add(1)
	return string(*id)
}

// Flush 等待所有事件上报完成
func (c *Client) Flush(timeout time.Duration) bool {
	return c.hub.Flush(timeout)
}

// Close 刷新后关闭，实现 app.Closer
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClientClosed
	}
	c.hub.Flush(c.config.ShutdownTimeout)
	return nil
}

// Stats 上报统计
func (c *Client) Stats() (captured, dropped uint64) {
	return c.captured.Load(), c.dropped.Load()
}
