package main

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/manager"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
)

// job 把一次批量任务挂到 app.BaseApp 上
// Start 提交任务，任务结束后调用 done 让应用退出；Stop 放弃未结束的任务并等待其退出
type job struct {
	mgr  *manager.Manager
	req  manager.Request
	done func()

	action   *model.BulkAction
	finished chan struct{}
	err      error
}

func newJob(mgr *manager.Manager, req manager.Request, done func()) *job {
	return &job{
		mgr:      mgr,
		req:      req,
		done:     done,
		finished: make(chan struct{}),
	}
}

func (j *job) Start() error {
	a, err := j.mgr.Create(context.Background(), j.req)
	if err != nil {
		return err
	}
	j.action = a

	go func() {
		j.err = j.mgr.Wait(context.Background(), a.ID())
		close(j.finished)
		if j.done != nil {
			j.done()
		}
	}()
	return nil
}

func (j *job) Stop() error {
	if j.action == nil {
		return nil
	}
	if err := j.mgr.Abort(j.action.ID()); err != nil && !errors.Is(err, model.ErrInvalidTransition) {
		return err
	}
	<-j.finished
	return nil
}

// Result 任务结束后的快照和 Run 的错误，任务未提交时返回 nil
func (j *job) Result() (*model.Overview, error) {
	if j.action == nil {
		return nil, nil
	}
	<-j.finished
	return j.action.Overview(), j.err
}
