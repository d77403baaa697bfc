package model

import "github.com/cockroachdb/errors"

// Status 批量任务状态
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusStopped      Status = "stopped"
	StatusAborted      Status = "aborted"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// ErrInvalidTransition 非法的状态迁移
var ErrInvalidTransition = errors.New("invalid bulk action status transition")

func (s Status) String() string { return string(s) }

// IsTerminal 是否为终态
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAborted, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// ValidateTransition 检查 s -> target 是否合法
func (s Status) ValidateTransition(target Status) error {
	if !s.canTransitionTo(target) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", s, target)
	}
	return nil
}

func (s Status) canTransitionTo(target Status) bool {
	switch s {
	case StatusInitializing:
		return target == StatusRunning || target == StatusFailed || target == StatusAborted
	case StatusRunning:
		return target == StatusStopped || target == StatusAborted ||
			target == StatusCompleted || target == StatusFailed
	case StatusStopped:
		// 暂停后可以恢复或放弃
		return target == StatusRunning || target == StatusAborted
	default:
		return false
	}
}
