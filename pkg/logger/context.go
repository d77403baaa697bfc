package logger

import (
	"context"

	"go.uber.org/zap"
)

// ContextFieldExtractor 从 context 提取字段的函数类型
type ContextFieldExtractor func(ctx context.Context) []zap.Field

type actionCtxKey struct{}

type actionFields struct {
	actionID   string
	databaseID string
}

// WithAction 在 context 中记录批量任务标识，*Context 日志方法会自动带上
func WithAction(ctx context.Context, actionID, databaseID string) context.Context {
	return context.WithValue(ctx, actionCtxKey{}, actionFields{actionID: actionID, databaseID: databaseID})
}

// ActionContextExtractor 默认提取器：bulk_action_id / database_id
func ActionContextExtractor(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	f, ok := ctx.Value(actionCtxKey{}).(actionFields)
	if !ok {
		return nil
	}
	fields := make([]zap.Field, 0, 2)
	if f.actionID != "" {
		fields = append(fields, zap.String("bulk_action_id", f.actionID))
	}
	if f.databaseID != "" {
		fields = append(fields, zap.String("database_id", f.databaseID))
	}
	return fields
}
