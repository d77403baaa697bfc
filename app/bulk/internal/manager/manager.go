// Package manager 进程内的批量任务注册表和控制入口
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/metrics"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/runner"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/sink"
	"github.com/lk2023060901/xdooria-bulk/pkg/database/redis"
	"github.com/lk2023060901/xdooria-bulk/pkg/logger"
)

// Request 创建任务的请求
type Request struct {
	ID         string // 为空时自动生成
	DatabaseID string
	Kind       model.MutationKind
	Filter     model.Filter
	Position   string
	// Sink 该任务额外的投递目标，和 Manager 的公共 Sink 同时生效
	Sink sink.Sink
	// Builder 覆盖默认的变更命令
	Builder model.CommandBuilder
}

type entry struct {
	runner *runner.Runner
	sink   sink.Sink

	mu   sync.Mutex
	done chan struct{} // 当前这次 Run 结束时关闭
	err  error
}

func (e *entry) wait() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *entry) lastErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *entry) idle() bool {
	select {
	case <-e.wait():
		return true
	default:
		return false
	}
}

// Manager 管理多个并发运行的批量任务，每个任务是 ants 池中的一个独立 task
type Manager struct {
	cfg      Config
	topology redis.Topology
	pool     *ants.Pool
	logger   logger.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	sink     sink.Sink

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
	wg      sync.WaitGroup
}

// Option 可选项
type Option func(*Manager)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithTracer 设置 tracer
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

// WithSink 所有任务共享的投递目标
func WithSink(s sink.Sink) Option {
	return func(m *Manager) {
		if s != nil {
			m.sink = s
		}
	}
}

// antsLogger 把 ants 的日志接到 logger.Logger
type antsLogger struct {
	l logger.Logger
}

func (a antsLogger) Printf(format string, args ...interface{}) {
	a.l.Warn(fmt.Sprintf(format, args...))
}

// New 创建 Manager
func New(cfg Config, topology redis.Topology, opts ...Option) (*Manager, error) {
	def := DefaultConfig()
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = def.ScanCount
	}

	m := &Manager{
		cfg:      cfg,
		topology: topology,
		logger:   logger.Default(),
		sink:     sink.Discard,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("bulk.manager")

	pool, err := ants.NewPool(cfg.PoolSize,
		ants.WithNonblocking(true),
		ants.WithLogger(antsLogger{l: m.logger}),
		ants.WithPanicHandler(func(p interface{}) {
			m.logger.Error("bulk action panicked", "panic", p)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}
	m.pool = pool
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

// Create 创建并启动任务
// 同 ID 的任务未结束时返回 ErrActionExists；已结束的同 ID 任务会被替换
func (m *Manager) Create(ctx context.Context, req Request) (*model.BulkAction, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	filter := req.Filter
	if filter.Count <= 0 {
		filter.Count = m.cfg.ScanCount
	}

	action, err := model.NewBulkAction(model.Params{
		ID:         req.ID,
		DatabaseID: req.DatabaseID,
		Kind:       req.Kind,
		Filter:     filter,
		Position:   req.Position,
		MaxErrors:  m.cfg.MaxErrors,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	old, replaced := m.entries[req.ID]
	if replaced && !old.runner.Action().Status().IsTerminal() {
		return nil, errors.Wrapf(ErrActionExists, "%s", req.ID)
	}

	e := &entry{sink: m.actionSink(req.Sink)}
	opts := []runner.Option{
		runner.WithConfig(m.cfg.Runner),
		runner.WithLogger(m.logger),
		runner.WithMetrics(m.metrics),
		runner.WithTracer(m.tracer),
		runner.WithSink(e.sink),
		runner.WithCommandBuilder(req.Builder),
	}
	e.runner = runner.New(action, m.topology, opts...)

	if replaced {
		sink.Forget(old.sink, req.ID)
	}
	if err := m.submit(e); err != nil {
		return nil, err
	}
	m.entries[req.ID] = e

	m.logger.InfoContext(logger.WithAction(ctx, action.ID(), action.DatabaseID()), "bulk action created",
		"kind", action.Kind(),
		"match", action.Filter().Match,
		"position", req.Position,
	)
	return action, nil
}

func (m *Manager) actionSink(extra sink.Sink) sink.Sink {
	if extra == nil {
		return m.sink
	}
	return sink.Multi{m.sink, extra}
}

// submit 在池中执行一次 Run，调用方持有 m.mu
func (m *Manager) submit(e *entry) error {
	done := make(chan struct{})
	e.mu.Lock()
	e.done = done
	e.err = nil
	e.mu.Unlock()

	m.wg.Add(1)
	err := m.pool.Submit(func() {
		defer m.wg.Done()
		err := e.runner.Run(m.ctx)
		if errors.Is(err, runner.ErrNotRunnable) && e.runner.Action().Status().IsTerminal() {
			// 调度前已被放弃
			m.emit(e)
			err = nil
		}
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		close(done)
	})
	if err != nil {
		m.wg.Done()
		close(done)
		if errors.Is(err, ants.ErrPoolOverload) {
			return errors.Wrapf(ErrPoolFull, "pool size %d", m.cfg.PoolSize)
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrClosed
		}
		return errors.Wrap(err, "submit bulk action")
	}
	return nil
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	return e, nil
}

// Get 获取任务
func (m *Manager) Get(id string) (*model.BulkAction, error) {
	e, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return e.runner.Action(), nil
}

// List 所有任务的快照，按 ID 排序
func (m *Manager) List() []*model.Overview {
	m.mu.RLock()
	out := make([]*model.Overview, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.runner.Action().Overview())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stop 暂停任务，当前批次完成后生效
func (m *Manager) Stop(id string) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}
	return e.runner.Action().Stop()
}

// Resume 恢复已暂停的任务并重新调度
func (m *Manager) Resume(id string) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}

	// 上一次 Run 还没退出时不能重新提交
	if !e.idle() {
		return errors.Wrapf(ErrActionActive, "%s is still stopping", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	action := e.runner.Action()
	if err := action.Resume(); err != nil {
		return err
	}
	if err := m.submit(e); err != nil {
		_ = action.Stop()
		return err
	}
	return nil
}

// Abort 放弃任务
// 对已暂停的任务（没有运行中的 Run）直接推送终态快照
func (m *Manager) Abort(id string) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}
	action := e.runner.Action()
	if err := action.Abort(); err != nil {
		return err
	}

	if e.idle() {
		m.emit(e)
	}
	return nil
}

func (m *Manager) emit(e *entry) {
	action := e.runner.Action()
	ctx := logger.WithAction(context.Background(), action.ID(), action.DatabaseID())
	if err := e.sink.Send(ctx, action.Overview()); err != nil {
		m.logger.WarnContext(ctx, "failed to deliver progress", "error", err)
	}
}

// Wait 等待任务当前这次 Run 结束，返回 Run 的错误
func (m *Manager) Wait(ctx context.Context, id string) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.wait():
		return e.lastErr()
	}
}

// Remove 移除已结束的任务
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}
	if !e.runner.Action().Status().IsTerminal() || !e.idle() {
		return errors.Wrapf(ErrActionActive, "%s", id)
	}
	delete(m.entries, id)
	sink.Forget(e.sink, id)
	return nil
}

// Running 池中正在执行的任务数
func (m *Manager) Running() int {
	return m.pool.Running()
}

// Close 放弃所有运行中的任务并等待退出
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	m.pool.Release()
	m.logger.Info("bulk action manager closed")
	return nil
}
