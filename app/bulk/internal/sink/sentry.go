package sink

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
)

// Reporter 错误上报，*sentry.Client 实现了该接口
type Reporter interface {
	CaptureError(err error, tags map[string]string, name string, extra map[string]interface{}) string
}

// Sentry 把 failed 终态上报给 Reporter，其余快照忽略，同一任务只上报一次
type Sentry struct {
	reporter Reporter

	mu       sync.Mutex
	reported map[string]struct{}
}

// NewSentry 创建 Sentry Sink
func NewSentry(r Reporter) *Sentry {
	return &Sentry{reporter: r, reported: make(map[string]struct{})}
}

func (s *Sentry) Send(_ context.Context, o *model.Overview) error {
	if o.Status != model.StatusFailed {
		return nil
	}

	s.mu.Lock()
	if _, ok := s.reported[o.ID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.reported[o.ID] = struct{}{}
	s.mu.Unlock()

	msg := o.Error
	if msg == "" {
		msg = "bulk action failed"
	}
	s.reporter.CaptureError(errors.New(msg),
		map[string]string{
			"bulk_action_id": o.ID,
			"database_id":    o.DatabaseID,
			"kind":           string(o.Type),
		},
		"bulk_action",
		map[string]interface{}{
			"match":     o.Filter.Match,
			"type":      o.Filter.Type,
			"position":  o.Progress.Position,
			"scanned":   o.Progress.Scanned,
			"total":     o.Progress.Total,
			"processed": o.Summary.Processed,
			"failed":    o.Summary.Failed,
			"duration":  o.Duration,
		},
	)
	return nil
}

// Forget 任务移除后清除上报记录，同 ID 的新任务失败时会再次上报
func (s *Sentry) Forget(id string) {
	s.mu.Lock()
	delete(s.reported, id)
	s.mu.Unlock()
}
