package model

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAction(t *testing.T) *BulkAction {
	t.Helper()
	a, err := NewBulkAction(Params{ID: "action-1", DatabaseID: "db-1", Filter: Filter{Match: "user:*"}})
	require.NoError(t, err)
	return a
}

func TestStatus_ValidateTransition(t *testing.T) {
	all := []Status{StatusInitializing, StatusRunning, StatusStopped, StatusAborted, StatusCompleted, StatusFailed}
	allowed := map[Status][]Status{
		StatusInitializing: {StatusRunning, StatusFailed, StatusAborted},
		StatusRunning:      {StatusStopped, StatusAborted, StatusCompleted, StatusFailed},
		StatusStopped:      {StatusRunning, StatusAborted},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			err := from.ValidateTransition(to)
			if want && err != nil {
				t.Errorf("%s -> %s should be allowed, got %v", from, to, err)
			}
			if !want && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s should be rejected, got %v", from, to, err)
			}
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusInitializing.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusStopped.IsTerminal())
	assert.True(t, StatusAborted.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestParseMutationKind(t *testing.T) {
	k, err := ParseMutationKind("DELETE")
	require.NoError(t, err)
	assert.Equal(t, MutationDelete, k)

	k, err = ParseMutationKind(" unlink ")
	require.NoError(t, err)
	assert.Equal(t, MutationUnlink, k)

	_, err = ParseMutationKind("rename")
	assert.True(t, errors.Is(err, ErrUnknownMutationKind))
}

func TestCommandFor(t *testing.T) {
	assert.Equal(t, []interface{}{"DEL", "k"}, CommandFor(MutationDelete)("k"))
	assert.Equal(t, []interface{}{"UNLINK", "k"}, CommandFor(MutationUnlink)("k"))
}

func TestFilter_WithDefaults(t *testing.T) {
	f := Filter{}.WithDefaults()
	assert.Equal(t, "*", f.Match)
	assert.Equal(t, DefaultScanCount, f.Count)

	f = Filter{Match: "a*", Type: "hash", Count: 50}.WithDefaults()
	assert.Equal(t, Filter{Match: "a*", Type: "hash", Count: 50}, f)
}

func TestNewBulkAction(t *testing.T) {
	_, err := NewBulkAction(Params{})
	assert.ErrorIs(t, err, ErrEmptyID)

	_, err = NewBulkAction(Params{ID: "x", Kind: "rename"})
	assert.True(t, errors.Is(err, ErrUnknownMutationKind))

	a := newAction(t)
	assert.Equal(t, StatusInitializing, a.Status())
	assert.Equal(t, MutationDelete, a.Kind())
	assert.Equal(t, DefaultScanCount, a.Filter().Count)
	assert.Equal(t, int64(0), a.Progress().Cursor())
	assert.Zero(t, a.Duration())
}

func TestBulkAction_Lifecycle(t *testing.T) {
	a := newAction(t)

	assert.Error(t, a.Resume())
	require.NoError(t, a.Transition(StatusRunning))
	require.NoError(t, a.Stop())
	assert.Equal(t, StatusStopped, a.Status())
	require.NoError(t, a.Resume())
	assert.True(t, a.IsRunning())
	require.NoError(t, a.Transition(StatusCompleted))

	assert.True(t, errors.Is(a.Abort(), ErrInvalidTransition))
	assert.Equal(t, StatusCompleted, a.Status())
	assert.GreaterOrEqual(t, a.Duration().Nanoseconds(), int64(0))
}

func TestBulkAction_Fail(t *testing.T) {
	a := newAction(t)
	require.NoError(t, a.Transition(StatusRunning))
	require.NoError(t, a.Fail(errors.New("boom")))

	o := a.Overview()
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, "boom", o.Error)
}

func TestBulkAction_ConcurrentTransitions(t *testing.T) {
	a := newAction(t)
	require.NoError(t, a.Transition(StatusRunning))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.Abort() == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, StatusAborted, a.Status())
}

func TestSummary_Counters(t *testing.T) {
	s := NewSummary(0)
	s.AddSuccess(3)
	s.AddFailure("k1", errors.New("NOPERM"))
	s.AddFailure("k2", nil)
	s.AddSuccess(0)

	snap := s.Snapshot()
	assert.Equal(t, int64(5), snap.Processed)
	assert.Equal(t, int64(3), snap.Succeed)
	assert.Equal(t, int64(2), snap.Failed)
	assert.Equal(t, snap.Processed, snap.Succeed+snap.Failed)
	assert.Equal(t, []KeyError{{Key: "k1", Message: "NOPERM"}, {Key: "k2", Message: "unknown error"}}, snap.Errors)
}

func TestSummary_BoundedErrors(t *testing.T) {
	s := NewSummary(3)
	for i := 0; i < 5; i++ {
		s.AddFailure(fmt.Sprintf("k%d", i), errors.New("x"))
	}

	errs := s.Errors()
	require.Len(t, errs, 3)
	assert.Equal(t, "k2", errs[0].Key)
	assert.Equal(t, "k4", errs[2].Key)
	assert.Equal(t, int64(5), s.Failed())
	assert.Equal(t, int64(5), s.Processed())
}

func TestProgress(t *testing.T) {
	var p Progress
	p.SetTotal(100)
	p.AddScanned(2)
	p.AddScanned(-1)
	p.AddScanned(3)
	p.SetCursor(12345, "localhost:6379@12345")

	assert.Equal(t, ProgressSnapshot{
		Total:    100,
		Scanned:  5,
		Cursor:   12345,
		Position: "localhost:6379@12345",
	}, p.Snapshot())
}

func TestProgress_SnapshotPairsCursorAndPosition(t *testing.T) {
	var p Progress
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			p.SetCursor(i, fmt.Sprintf("10.0.0.1:7000@%d", i))
		}
	}()

	for i := 0; i < 10000; i++ {
		snap := p.Snapshot()
		if snap.Cursor == 0 {
			assert.Empty(t, snap.Position)
			continue
		}
		if want := fmt.Sprintf("10.0.0.1:7000@%d", snap.Cursor); snap.Position != want {
			t.Fatalf("position %q does not belong to cursor %d", snap.Position, snap.Cursor)
		}
	}
	close(stop)
	wg.Wait()
}

func TestOverview_JSON(t *testing.T) {
	a := newAction(t)
	a.Progress().SetTotal(10)
	a.Summary().AddFailure("bad", errors.New("ERR"))

	data, err := json.Marshal(a.Overview())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "action-1", decoded["id"])
	assert.Equal(t, "db-1", decoded["databaseId"])
	assert.Equal(t, "delete", decoded["type"])
	assert.Equal(t, "initializing", decoded["status"])
	assert.NotContains(t, decoded, "error")

	summary := decoded["summary"].(map[string]interface{})
	assert.Equal(t, float64(1), summary["failed"])
}
