package sink

import (
	"context"
	"sync"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
)

// Chan 把快照写入 Go channel
// 缓冲区满时丢弃最旧的快照，保证最新（包括终态）快照一定能写入
type Chan struct {
	mu sync.Mutex
	ch chan *model.Overview
}

// NewChan 创建 channel Sink，size <= 0 时为 1
func NewChan(size int) *Chan {
	if size <= 0 {
		size = 1
	}
	return &Chan{ch: make(chan *model.Overview, size)}
}

// C 快照只读 channel
func (s *Chan) C() <-chan *model.Overview {
	return s.ch
}

func (s *Chan) Send(_ context.Context, o *model.Overview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		select {
		case s.ch <- o:
			return nil
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
