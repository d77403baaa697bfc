package manager

import "github.com/cockroachdb/errors"

var (
	// ErrActionExists 同 ID 的任务仍未结束
	ErrActionExists = errors.New("bulk action already exists")

	// ErrNotFound 任务不存在
	ErrNotFound = errors.New("bulk action not found")

	// ErrActionActive 任务未结束，不能移除
	ErrActionActive = errors.New("bulk action is still active")

	// ErrPoolFull 并发运行的任务数已达上限
	ErrPoolFull = errors.New("too many running bulk actions")

	// ErrClosed Manager 已关闭
	ErrClosed = errors.New("bulk action manager closed")
)
