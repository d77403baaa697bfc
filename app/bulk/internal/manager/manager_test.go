package manager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/runner"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/sink"
	"github.com/lk2023060901/xdooria-bulk/pkg/database/redis"
	"github.com/lk2023060901/xdooria-bulk/pkg/logger"
)

// fakeNode pages 用完后：endless 为真时一直返回非零游标，否则结束
type fakeNode struct {
	mu      sync.Mutex
	pages   int
	endless bool
	gate    chan struct{}
}

func (n *fakeNode) Addr() string { return "localhost:6379" }

func (n *fakeNode) Scan(ctx context.Context, _ redis.ScanArgs) (redis.ScanResult, error) {
	if n.gate != nil {
		select {
		case <-n.gate:
		case <-ctx.Done():
			return redis.ScanResult{}, ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pages > 0 {
		n.pages--
		return redis.ScanResult{Keys: []string{fmt.Sprintf("k%d", n.pages)}, Cursor: 7}, nil
	}
	if n.endless {
		return redis.ScanResult{Keys: []string{"k"}, Cursor: 7}, nil
	}
	return redis.ScanResult{}, nil
}

func (n *fakeNode) DBSize(context.Context) (int64, error) { return 10, nil }

func (n *fakeNode) Exec(_ context.Context, cmds [][]interface{}) ([]redis.PipelineResult, error) {
	return make([]redis.PipelineResult, len(cmds)), nil
}

type fakeTopology struct {
	node redis.Node
}

func (t fakeTopology) Masters(context.Context) ([]redis.Node, error) {
	return []redis.Node{t.node}, nil
}

func newManager(t *testing.T, node redis.Node, opts ...Option) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PoolSize = 2
	cfg.Runner = runner.Config{IterationDelay: time.Millisecond}
	opts = append([]Option{WithLogger(logger.NewNoop())}, opts...)
	m, err := New(cfg, fakeTopology{node: node}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func waitStatus(t *testing.T, a *model.BulkAction, status model.Status) {
	t.Helper()
	require.Eventually(t, func() bool { return a.Status() == status },
		2*time.Second, time.Millisecond, "status %s, want %s", a.Status(), status)
}

func TestCreate_RunsToCompletion(t *testing.T) {
	m := newManager(t, &fakeNode{pages: 3})

	ch := sink.NewChan(16)
	a, err := m.Create(context.Background(), Request{Sink: ch})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID(), "generated id")
	assert.Equal(t, model.MutationDelete, a.Kind())
	assert.Equal(t, model.DefaultScanCount, a.Filter().Count)

	require.NoError(t, m.Wait(context.Background(), a.ID()))
	assert.Equal(t, model.StatusCompleted, a.Status())
	assert.Equal(t, int64(3), a.Summary().Succeed())

	var last *model.Overview
	for len(ch.C()) > 0 {
		last = <-ch.C()
	}
	require.NotNil(t, last)
	assert.Equal(t, model.StatusCompleted, last.Status)
}

func TestCreate_DuplicateID(t *testing.T) {
	node := &fakeNode{endless: true}
	m := newManager(t, node)

	_, err := m.Create(context.Background(), Request{ID: "a1"})
	require.NoError(t, err)
	_, err = m.Create(context.Background(), Request{ID: "a1"})
	assert.True(t, errors.Is(err, ErrActionExists))

	require.NoError(t, m.Abort("a1"))
	require.NoError(t, m.Wait(context.Background(), "a1"))

	// 已结束的同 ID 任务可以被替换
	a, err := m.Create(context.Background(), Request{ID: "a1"})
	require.NoError(t, err)
	require.NoError(t, m.Abort(a.ID()))
}

func TestCreate_InvalidKind(t *testing.T) {
	m := newManager(t, &fakeNode{})
	_, err := m.Create(context.Background(), Request{Kind: "flush"})
	assert.True(t, errors.Is(err, model.ErrUnknownMutationKind))
	assert.Empty(t, m.List())
}

func TestCreate_PoolFull(t *testing.T) {
	gate := make(chan struct{})
	m := newManager(t, &fakeNode{gate: gate})

	_, err := m.Create(context.Background(), Request{ID: "a"})
	require.NoError(t, err)
	_, err = m.Create(context.Background(), Request{ID: "b"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.Running() == 2 }, time.Second, time.Millisecond)

	_, err = m.Create(context.Background(), Request{ID: "c"})
	assert.True(t, errors.Is(err, ErrPoolFull))

	close(gate)
	require.NoError(t, m.Wait(context.Background(), "a"))
	require.NoError(t, m.Wait(context.Background(), "b"))
}

func TestStopResume(t *testing.T) {
	node := &fakeNode{endless: true}
	m := newManager(t, node)

	a, err := m.Create(context.Background(), Request{ID: "s1"})
	require.NoError(t, err)
	waitStatus(t, a, model.StatusRunning)

	require.NoError(t, m.Stop("s1"))
	require.NoError(t, m.Wait(context.Background(), "s1"))
	assert.Equal(t, model.StatusStopped, a.Status())
	scanned := a.Progress().Scanned()

	require.NoError(t, m.Resume("s1"))
	require.Eventually(t, func() bool { return a.Progress().Scanned() > scanned }, time.Second, time.Millisecond)

	node.mu.Lock()
	node.endless = false
	node.mu.Unlock()
	require.NoError(t, m.Wait(context.Background(), "s1"))
	assert.Equal(t, model.StatusCompleted, a.Status())
}

func TestResume_NotStopped(t *testing.T) {
	m := newManager(t, &fakeNode{})
	a, err := m.Create(context.Background(), Request{ID: "r1"})
	require.NoError(t, err)
	require.NoError(t, m.Wait(context.Background(), a.ID()))

	err = m.Resume("r1")
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))
}

func TestAbortStopped_EmitsFinalSnapshot(t *testing.T) {
	m := newManager(t, &fakeNode{endless: true})

	ch := sink.NewChan(64)
	a, err := m.Create(context.Background(), Request{ID: "x1", Sink: ch})
	require.NoError(t, err)
	waitStatus(t, a, model.StatusRunning)
	require.NoError(t, m.Stop("x1"))
	require.NoError(t, m.Wait(context.Background(), "x1"))
	for len(ch.C()) > 0 {
		<-ch.C()
	}

	require.NoError(t, m.Abort("x1"))
	assert.Equal(t, model.StatusAborted, a.Status())
	require.Len(t, ch.C(), 1)
	assert.Equal(t, model.StatusAborted, (<-ch.C()).Status)

	assert.True(t, errors.Is(m.Abort("x1"), model.ErrInvalidTransition))
}

func TestGetListRemove(t *testing.T) {
	m := newManager(t, &fakeNode{})

	_, err := m.Get("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(m.Stop("nope"), ErrNotFound))
	assert.True(t, errors.Is(m.Remove("nope"), ErrNotFound))

	for _, id := range []string{"b", "a"} {
		_, err := m.Create(context.Background(), Request{ID: id, DatabaseID: "db1"})
		require.NoError(t, err)
		require.NoError(t, m.Wait(context.Background(), id))
	}

	a, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "db1", a.DatabaseID())

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	require.NoError(t, m.Remove("a"))
	assert.Len(t, m.List(), 1)
}

func TestRemove_Active(t *testing.T) {
	m := newManager(t, &fakeNode{endless: true})
	a, err := m.Create(context.Background(), Request{ID: "act"})
	require.NoError(t, err)
	waitStatus(t, a, model.StatusRunning)

	assert.True(t, errors.Is(m.Remove("act"), ErrActionActive))
	require.NoError(t, m.Abort("act"))
	require.NoError(t, m.Wait(context.Background(), "act"))
	require.NoError(t, m.Remove("act"))
}

func TestClose_AbortsRunning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Runner = runner.Config{IterationDelay: time.Millisecond}
	m, err := New(cfg, fakeTopology{node: &fakeNode{endless: true}}, WithLogger(logger.NewNoop()))
	require.NoError(t, err)

	a, err := m.Create(context.Background(), Request{})
	require.NoError(t, err)
	waitStatus(t, a, model.StatusRunning)

	require.NoError(t, m.Close())
	assert.Equal(t, model.StatusAborted, a.Status())
	require.NoError(t, m.Close())

	_, err = m.Create(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestWait_ContextDone(t *testing.T) {
	m := newManager(t, &fakeNode{endless: true})
	a, err := m.Create(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx, a.ID()), context.DeadlineExceeded)
	require.NoError(t, m.Abort(a.ID()))
}

type countingReporter struct {
	mu  sync.Mutex
	ids []string
}

func (r *countingReporter) CaptureError(_ error, tags map[string]string, _ string, _ map[string]interface{}) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, tags["bulk_action_id"])
	return "evt"
}

func (r *countingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func TestRecreate_ReportsFailureAgain(t *testing.T) {
	tests := []struct {
		name   string
		shared bool // Sentry 挂在 Manager 上而非 Request 上
		remove bool
	}{
		{name: "remove then create", remove: true},
		{name: "replace terminal", remove: false},
		{name: "shared sink remove", shared: true, remove: true},
		{name: "shared sink replace", shared: true, remove: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingReporter{}
			st := sink.NewSentry(r)

			var opts []Option
			req := Request{ID: "f1", Position: "bad"}
			if tt.shared {
				opts = append(opts, WithSink(st))
			} else {
				req.Sink = st
			}
			m := newManager(t, &fakeNode{}, opts...)

			for i := 1; i <= 2; i++ {
				a, err := m.Create(context.Background(), req)
				require.NoError(t, err)
				_ = m.Wait(context.Background(), "f1")
				waitStatus(t, a, model.StatusFailed)
				require.Eventually(t, func() bool { return r.count() == i },
					2*time.Second, time.Millisecond, "reports %d, want %d", r.count(), i)
				if tt.remove {
					require.NoError(t, m.Remove("f1"))
				}
			}
			assert.Equal(t, []string{"f1", "f1"}, r.ids)
		})
	}
}
