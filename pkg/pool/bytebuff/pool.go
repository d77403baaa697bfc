// Package bytebuff 带统计的 ByteBuffer 对象池，底层使用 valyala/bytebufferpool
package bytebuff

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// ByteBuffer 池中的缓冲区
type ByteBuffer = bytebufferpool.ByteBuffer

// Pool ByteBuffer 对象池
// valyala 会根据历史使用情况自动校准默认容量和最大保留容量
type Pool struct {
	pool bytebufferpool.Pool

	gets atomic.Uint64
	puts atomic.Uint64
}

// defaultPool 是默认的全局池
var defaultPool = NewPool()

// NewPool 创建对象池
func NewPool() *Pool {
	return &Pool{}
}

// Get 从池中获取一个已清空的 ByteBuffer
func (p *Pool) Get() *ByteBuffer {
	p.gets.Add(1)
	return p.pool.Get()
}

// Put 将 ByteBuffer 归还到池中，归还后不能再使用
func (p *Pool) Put(buf *ByteBuffer) {
	if buf == nil {
		return
	}
	p.puts.Add(1)
	p.pool.Put(buf)
}

// Stats 返回获取和归还次数
func (p *Pool) Stats() (gets, puts uint64) {
	return p.gets.Load(), p.puts.Load()
}

// Get 从默认池中获取一个 ByteBuffer
func Get() *ByteBuffer {
	return defaultPool.Get()
}

// Put 将 ByteBuffer 归还到默认池中
func Put(buf *ByteBuffer) {
	defaultPool.Put(buf)
}

// Stats 返回默认池的统计信息
func Stats() (gets, puts uint64) {
	return defaultPool.Stats()
}
