package sink

import (
	"context"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/pkg/logger"
)

// Log 把快照写入日志
type Log struct {
	logger logger.Logger
}

// NewLog 创建日志 Sink
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.NewNoop()
	}
	return &Log{logger: l.Named("bulk.progress")}
}

func (s *Log) Send(ctx context.Context, o *model.Overview) error {
	kv := []interface{}{
		"status", o.Status,
		"total", o.Progress.Total,
		"scanned", o.Progress.Scanned,
		"cursor", o.Progress.Cursor,
		"processed", o.Summary.Processed,
		"succeed", o.Summary.Succeed,
		"failed", o.Summary.Failed,
		"duration_ms", o.Duration,
	}
	if o.Error != "" {
		kv = append(kv, "error", o.Error)
	}

	if o.Status.IsTerminal() || o.Status == model.StatusStopped {
		kv = append(kv, "position", o.Progress.Position)
		s.logger.InfoContext(ctx, "bulk action finished", kv...)
		return nil
	}
	s.logger.DebugContext(ctx, "bulk action progress", kv...)
	return nil
}
