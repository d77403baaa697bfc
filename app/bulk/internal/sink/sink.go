// Package sink 批量任务进度快照的投递目标
package sink

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
)

// Sink 接收进度快照
// 投递失败只记录日志，不会影响任务执行
type Sink interface {
	Send(ctx context.Context, o *model.Overview) error
}

// Func 函数适配器
type Func func(ctx context.Context, o *model.Overview) error

func (f Func) Send(ctx context.Context, o *model.Overview) error {
	return f(ctx, o)
}

// Discard 丢弃所有快照
var Discard Sink = Func(func(context.Context, *model.Overview) error { return nil })

// Multi 依次投递给多个 Sink，汇总所有错误
type Multi []Sink

func (m Multi) Send(ctx context.Context, o *model.Overview) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Forget 转发给实现了 Forgetter 的成员
func (m Multi) Forget(id string) {
	for _, s := range m {
		Forget(s, id)
	}
}

// Forgetter 由按任务 ID 保存状态的 Sink 实现，任务移除后释放该状态
type Forgetter interface {
	Forget(id string)
}

// Forget s 实现了 Forgetter 时释放 id 的状态
func Forget(s Sink, id string) {
	if f, ok := s.(Forgetter); ok {
		f.Forget(id)
	}
}

// Channel 返回任务快照推送使用的频道名
func Channel(prefix, id string) string {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return prefix + ":" + id
}

// DefaultChannelPrefix 默认推送频道前缀
const DefaultChannelPrefix = "bulk-actions"
