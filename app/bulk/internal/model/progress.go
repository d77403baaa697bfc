package model

import "go.uber.org/atomic"

// Progress 扫描进度
// 只由 runner 写入，其他 goroutine 通过 Snapshot 读取
type Progress struct {
	total   atomic.Int64
	scanned atomic.Int64
	cursor  atomic.Pointer[cursorState] // 聚合游标和组合游标一起替换
}

type cursorState struct {
	cursor   int64
	position string
}

func (p *Progress) loadCursor() cursorState {
	if c := p.cursor.Load(); c != nil {
		return *c
	}
	return cursorState{}
}

// ProgressSnapshot Progress 的只读快照
type ProgressSnapshot struct {
	Total    int64  `json:"total"`    // DBSIZE 估算值，0 表示未知
	Scanned  int64  `json:"scanned"`  // 已扫描到的 key 数量
	Cursor   int64  `json:"cursor"`   // 0 未开始，-1 全部扫完
	Position string `json:"position"` // 可用于续扫的组合游标
}

func (p *Progress) SetTotal(total int64) { p.total.Store(total) }
func (p *Progress) Total() int64         { return p.total.Load() }

// AddScanned 累加本轮扫描到的 key 数量
func (p *Progress) AddScanned(n int) {
	if n > 0 {
		p.scanned.Add(int64(n))
	}
}

func (p *Progress) Scanned() int64 { return p.scanned.Load() }

// SetCursor 更新聚合游标和组合游标
func (p *Progress) SetCursor(cursor int64, position string) {
	p.cursor.Store(&cursorState{cursor: cursor, position: position})
}

func (p *Progress) Cursor() int64    { return p.loadCursor().cursor }
func (p *Progress) Position() string { return p.loadCursor().position }

// Snapshot 返回当前进度的拷贝
func (p *Progress) Snapshot() ProgressSnapshot {
	c := p.loadCursor()
	return ProgressSnapshot{
		Total:    p.total.Load(),
		Scanned:  p.scanned.Load(),
		Cursor:   c.cursor,
		Position: c.position,
	}
}
