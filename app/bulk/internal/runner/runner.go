// Package runner 批量任务的迭代引擎
//
// 每轮：对所有未扫完的分片并发 SCAN 一次，把取到的 key 通过 Pipeline 变更，
// 更新 Progress/Summary 并推送快照。两轮之间检查任务状态，外部的 Stop/Abort
// 只在轮与轮之间生效，正在执行的批次总会完成。
package runner

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/cursor"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/metrics"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/scanner"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/sink"
	"github.com/lk2023060901/xdooria-bulk/pkg/database/redis"
	"github.com/lk2023060901/xdooria-bulk/pkg/logger"
)

const tracerName = "github.com/lk2023060901/xdooria-bulk/app/bulk/internal/runner"

// Runner 驱动一个 BulkAction 直到终态
// 同一个 Runner 同一时刻只允许一个 Run
type Runner struct {
	action   *model.BulkAction
	topology redis.Topology

	cfg     Config
	build   model.CommandBuilder
	sink    sink.Sink
	logger  logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	emitter *rate.Sometimes

	coordinator *scanner.Coordinator
	running     atomic.Bool
	iterations  atomic.Int64
}

// New 创建 Runner
func New(action *model.BulkAction, topology redis.Topology, opts ...Option) *Runner {
	r := &Runner{
		action:   action,
		topology: topology,
		cfg:      DefaultConfig(),
		build:    model.CommandFor(action.Kind()),
		sink:     sink.Discard,
		logger:   logger.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("bulk.runner")

	if r.cfg.ProgressInterval > 0 {
		r.emitter = &rate.Sometimes{Interval: r.cfg.ProgressInterval}
	} else {
		r.emitter = &rate.Sometimes{Every: 1}
	}
	return r
}

// Action 当前任务
func (r *Runner) Action() *model.BulkAction {
	return r.action
}

// Iterations 已完成的迭代轮数
func (r *Runner) Iterations() int64 {
	return r.iterations.Load()
}

// PrepareToStart 发现分片、恢复起始位置并估算 key 总数，只执行一次
// 估算失败不影响运行，total 记为 0
func (r *Runner) PrepareToStart(ctx context.Context) error {
	if r.coordinator != nil {
		return nil
	}

	nodes, err := r.topology.Masters(ctx)
	if err != nil {
		return errors.Wrap(err, "discover shards")
	}

	f := r.action.Filter()
	c, err := scanner.NewCoordinator(nodes, scanner.Options{Match: f.Match, Type: f.Type, Count: f.Count})
	if err != nil {
		return err
	}
	if err := c.Restore(r.action.StartPosition()); err != nil {
		return err
	}

	total, err := c.Estimate(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to estimate total keys", "error", err)
		total = 0
	}

	p := r.action.Progress()
	p.SetTotal(total)
	p.SetCursor(c.Cursor(), c.Position())
	r.coordinator = c
	return nil
}

// GetKeysToProcess 执行一轮扫描并更新 scanned 和游标
func (r *Runner) GetKeysToProcess(ctx context.Context) ([]scanner.Batch, error) {
	if r.coordinator == nil {
		return nil, ErrNotPrepared
	}

	batches, err := r.coordinator.Next(ctx)
	if err != nil {
		return nil, err
	}

	p := r.action.Progress()
	p.AddScanned(scanner.KeyCount(batches))
	p.SetCursor(r.coordinator.Cursor(), r.coordinator.Position())
	return batches, nil
}

// RunIteration 扫描一轮并变更取到的 key
// 只有扫描失败会返回错误，单个 key 的失败记录在 Summary 中
func (r *Runner) RunIteration(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "bulk.iteration", trace.WithAttributes(
		attribute.String("bulk.action_id", r.action.ID()),
		attribute.String("bulk.kind", string(r.action.Kind())),
	))
	defer span.End()

	start := time.Now()
	batches, err := r.GetKeysToProcess(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// 已取到的 key 必须完成变更，取消只在轮与轮之间生效
	keys := scanner.KeyCount(batches)
	succeed, failed := r.mutate(context.WithoutCancel(ctx), batches)
	elapsed := time.Since(start)

	cur := r.action.Progress().Cursor()
	span.SetAttributes(
		attribute.Int("bulk.keys", keys),
		attribute.Int("bulk.failed", failed),
		attribute.Int64("bulk.cursor", cur),
	)
	r.metrics.ObserveIteration(r.action.Kind(), keys, succeed, failed, elapsed)
	n := r.iterations.Inc()

	r.logger.DebugContext(ctx, "iteration done",
		"iteration", n,
		"keys", keys,
		"succeed", succeed,
		"failed", failed,
		"cursor", cur,
		"elapsed", elapsed,
	)
	return nil
}

// mutate 每个分片一个 Pipeline，并发执行，按分片和 key 的顺序记录结果
func (r *Runner) mutate(ctx context.Context, batches []scanner.Batch) (succeed, failed int) {
	if len(batches) == 0 {
		return 0, 0
	}

	replies := make([][]redis.PipelineResult, len(batches))
	execErrs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, b := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmds := make([][]interface{}, len(b.Keys))
			for j, key := range b.Keys {
				cmds[j] = r.build(key)
			}
			replies[i], execErrs[i] = b.Node.Exec(ctx, cmds)
		}()
	}
	wg.Wait()

	summary := r.action.Summary()
	for i, b := range batches {
		if execErrs[i] != nil {
			r.logger.WarnContext(ctx, "pipeline failed", "shard", b.Node.Addr(), "keys", len(b.Keys), "error", execErrs[i])
		}

		ok := 0
		for j, key := range b.Keys {
			var err error
			switch {
			case execErrs[i] != nil:
				err = execErrs[i]
			case j >= len(replies[i]):
				err = ErrMissingReply
			default:
				err = replies[i][j].Err
			}

			if err != nil {
				summary.AddFailure(key, err)
				failed++
				continue
			}
			ok++
		}
		summary.AddSuccess(ok)
		succeed += ok
	}
	return succeed, failed
}

// Run 运行直到完成、失败、被暂停或放弃
// Initializing 状态会先执行 PrepareToStart；暂停后需要先 Resume 再调用 Run
// ctx 取消视为放弃。扫描失败时任务进入 Failed 并返回该错误
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.Wrap(ErrNotRunnable, "already running")
	}
	defer r.running.Store(false)

	ctx = logger.WithAction(ctx, r.action.ID(), r.action.DatabaseID())

	switch status := r.action.Status(); status {
	case model.StatusInitializing, model.StatusRunning:
		if err := r.PrepareToStart(ctx); err != nil {
			r.logger.ErrorContext(ctx, "failed to prepare bulk action", "error", err)
			_ = r.action.Fail(err)
			r.emitFinal(ctx)
			return err
		}
		if status == model.StatusInitializing {
			if err := r.action.Transition(model.StatusRunning); err != nil {
				// 准备期间被放弃
				r.emitFinal(ctx)
				return nil
			}
		}
	default:
		return errors.Wrapf(ErrNotRunnable, "status %s", status)
	}

	r.logger.InfoContext(ctx, "bulk action running",
		"kind", r.action.Kind(),
		"match", r.action.Filter().Match,
		"shards", r.coordinator.Shards(),
		"total", r.action.Progress().Total(),
		"position", r.action.Progress().Position(),
	)

	r.metrics.ActionStarted(r.action.Kind())
	err := r.loop(ctx)
	r.metrics.ActionFinished(r.action.Kind(), r.action.Status())

	r.logger.InfoContext(ctx, "bulk action left running",
		"status", r.action.Status(),
		"iterations", r.Iterations(),
		"processed", r.action.Summary().Processed(),
		"failed", r.action.Summary().Failed(),
		"duration", r.action.Duration(),
	)
	r.emitFinal(ctx)
	return err
}

func (r *Runner) loop(ctx context.Context) error {
	progress := r.action.Progress()

	for r.action.IsRunning() && progress.Cursor() != cursor.Exhausted {
		if ctx.Err() != nil {
			r.abort(ctx)
			return nil
		}

		if err := r.RunIteration(ctx); err != nil {
			if ctx.Err() != nil {
				r.abort(ctx)
				return nil
			}
			r.logger.ErrorContext(ctx, "bulk action failed", "error", err)
			_ = r.action.Fail(err)
			return err
		}
		r.emitter.Do(func() { r.emit(ctx) })

		if ctx.Err() != nil {
			r.abort(ctx)
			return nil
		}
		if progress.Cursor() == cursor.Exhausted {
			break
		}
		if !r.yield(ctx) {
			r.abort(ctx)
			return nil
		}
	}

	if r.action.IsRunning() && progress.Cursor() == cursor.Exhausted {
		_ = r.action.Transition(model.StatusCompleted)
	}
	return nil
}

// yield 两轮之间让出调度，ctx 取消时返回 false
func (r *Runner) yield(ctx context.Context) bool {
	if r.cfg.IterationDelay <= 0 {
		runtime.Gosched()
		return ctx.Err() == nil
	}

	t := time.NewTimer(r.cfg.IterationDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Runner) abort(ctx context.Context) {
	if err := r.action.Abort(); err == nil {
		r.logger.WarnContext(ctx, "bulk action aborted", "cause", context.Cause(ctx))
	}
}

func (r *Runner) emit(ctx context.Context) {
	if err := r.sink.Send(ctx, r.action.Overview()); err != nil {
		r.logger.WarnContext(ctx, "failed to deliver progress", "error", err)
	}
}

// emitFinal 离开运行时的快照总会推送，调用方的 ctx 可能已经取消
func (r *Runner) emitFinal(ctx context.Context) {
	r.emit(context.WithoutCancel(ctx))
}
