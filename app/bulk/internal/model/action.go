package model

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

var (
	// ErrEmptyID 缺少任务 ID
	ErrEmptyID = errors.New("bulk action id is empty")
)

// Params 创建批量任务的参数
type Params struct {
	ID         string
	DatabaseID string
	Kind       MutationKind
	Filter     Filter
	// Position 从调用方保存的组合游标继续扫描，空串表示从头开始
	Position string
	// MaxErrors Summary 保留的错误条数上限
	MaxErrors int
}

// BulkAction 批量任务聚合根
//
// status 是唯一会被 runner 和外部调用方并发写入的字段，使用 CAS 迁移；
// Progress 和 Summary 只由 runner 写入。
type BulkAction struct {
	id         string
	databaseID string
	kind       MutationKind
	filter     Filter
	position   string

	status    atomic.String
	err       atomic.Error
	startedAt atomic.Time
	endedAt   atomic.Time

	progress *Progress
	summary  *Summary
}

// NewBulkAction 创建批量任务，初始状态为 Initializing
func NewBulkAction(p Params) (*BulkAction, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, ErrEmptyID
	}
	if p.Kind == "" {
		p.Kind = MutationDelete
	}
	if !p.Kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownMutationKind, "%q", p.Kind)
	}

	a := &BulkAction{
		id:         p.ID,
		databaseID: p.DatabaseID,
		kind:       p.Kind,
		filter:     p.Filter.WithDefaults(),
		position:   p.Position,
		progress:   &Progress{},
		summary:    NewSummary(p.MaxErrors),
	}
	a.status.Store(string(StatusInitializing))
	return a, nil
}

func (a *BulkAction) ID() string            { return a.id }
func (a *BulkAction) DatabaseID() string    { return a.databaseID }
func (a *BulkAction) Kind() MutationKind    { return a.kind }
func (a *BulkAction) Filter() Filter        { return a.filter }
func (a *BulkAction) Progress() *Progress   { return a.progress }
func (a *BulkAction) Summary() *Summary     { return a.summary }
func (a *BulkAction) Status() Status        { return Status(a.status.Load()) }
func (a *BulkAction) IsRunning() bool       { return a.Status() == StatusRunning }
func (a *BulkAction) StartPosition() string { return a.position }

// Err 任务失败原因
func (a *BulkAction) Err() error {
	return a.err.Load()
}

// Transition 迁移到 target 状态，非法迁移返回 ErrInvalidTransition
func (a *BulkAction) Transition(target Status) error {
	for {
		current := a.Status()
		if err := current.ValidateTransition(target); err != nil {
			return err
		}
		if a.status.CompareAndSwap(string(current), string(target)) {
			a.markTime(target)
			return nil
		}
	}
}

func (a *BulkAction) markTime(target Status) {
	now := time.Now()
	if target == StatusRunning && a.startedAt.Load().IsZero() {
		a.startedAt.Store(now)
	}
	if target.IsTerminal() {
		a.endedAt.Store(now)
	}
}

// Stop 暂停，当前批次执行完后生效
func (a *BulkAction) Stop() error {
	return a.Transition(StatusStopped)
}

// Resume 恢复已暂停的任务
func (a *BulkAction) Resume() error {
	if a.Status() != StatusStopped {
		return errors.Wrapf(ErrInvalidTransition, "resume from %s", a.Status())
	}
	return a.Transition(StatusRunning)
}

// Abort 放弃任务
func (a *BulkAction) Abort() error {
	return a.Transition(StatusAborted)
}

// Fail 以 err 结束任务
func (a *BulkAction) Fail(err error) error {
	if err != nil {
		a.err.Store(err)
	}
	return a.Transition(StatusFailed)
}

// Duration 从第一次进入 Running 到终态的耗时，未开始为 0
func (a *BulkAction) Duration() time.Duration {
	start := a.startedAt.Load()
	if start.IsZero() {
		return 0
	}
	end := a.endedAt.Load()
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(start)
}

// Overview 生成当前快照
func (a *BulkAction) Overview() *Overview {
	o := &Overview{
		ID:         a.id,
		DatabaseID: a.databaseID,
		Type:       a.kind,
		Status:     a.Status(),
		Filter:     a.filter,
		Duration:   a.Duration().Milliseconds(),
		Progress:   a.progress.Snapshot(),
		Summary:    a.summary.Snapshot(),
	}
	if err := a.Err(); err != nil {
		o.Error = err.Error()
	}
	return o
}
