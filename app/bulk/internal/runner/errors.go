package runner

import "github.com/cockroachdb/errors"

var (
	// ErrNotPrepared 未调用 PrepareToStart
	ErrNotPrepared = errors.New("bulk action runner is not prepared")

	// ErrNotRunnable 任务当前状态不能运行
	ErrNotRunnable = errors.New("bulk action is not runnable")

	// ErrMissingReply Pipeline 返回的结果少于命令数
	ErrMissingReply = errors.New("missing pipeline reply")
)
