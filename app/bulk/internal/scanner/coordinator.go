// Package scanner 多分片 SCAN 协调
package scanner

import (
	"context"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/cursor"
	"github.com/lk2023060901/xdooria-bulk/pkg/database/redis"
)

// Options 每轮 SCAN 的参数
type Options struct {
	Match string
	Type  string
	Count int64
}

// NodeScanState 单个分片的扫描状态，只由 Coordinator 持有
type NodeScanState struct {
	node redis.Node

	Host    string
	Port    int
	Cursor  int64 // 原生游标，0 未开始，-1 已扫完
	Total   int64
	Scanned int64
	Keys    []string // 最近一轮取到、尚未交给变更步骤的 key
}

// Exhausted 分片是否已扫完
func (s *NodeScanState) Exhausted() bool {
	return s.Cursor < 0
}

func (s *NodeScanState) addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Coordinator 每轮对所有未扫完的分片并发执行一次 SCAN
type Coordinator struct {
	opts    Options
	states  []*NodeScanState
	started bool
}

// NewCoordinator 为给定分片创建协调器，所有分片从游标 0 开始
func NewCoordinator(nodes []redis.Node, opts Options) (*Coordinator, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	states := make([]*NodeScanState, 0, len(nodes))
	for _, n := range nodes {
		host, rawPort, err := net.SplitHostPort(n.Addr())
		if err != nil {
			return nil, errors.Wrapf(err, "invalid shard address %q", n.Addr())
		}
		port, err := strconv.Atoi(rawPort)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid shard port %q", n.Addr())
		}
		states = append(states, &NodeScanState{
			node: n,
			Host: strings.ToLower(host),
			Port: port,
		})
	}

	return &Coordinator{opts: opts, states: states}, nil
}

// Restore 从组合游标恢复各分片位置
// 未出现在游标中的分片视为已扫完；空串表示从头开始
func (c *Coordinator) Restore(position string) error {
	if position == "" {
		return nil
	}

	positions, err := cursor.Decode(position)
	if err != nil {
		return err
	}

	index := make(map[string]*NodeScanState, len(c.states))
	for _, s := range c.states {
		index[s.addr()] = s
	}
	for _, p := range positions {
		if _, ok := index[p.Addr()]; !ok {
			return errors.Wrapf(ErrUnknownNode, "%s", p.Addr())
		}
	}

	for _, s := range c.states {
		s.Cursor = cursor.Exhausted
	}
	for _, p := range positions {
		index[p.Addr()].Cursor = p.Cursor
	}
	c.started = true
	return nil
}

// Batch 单个分片本轮取到的 key，变更命令需要发往同一个分片
type Batch struct {
	Node redis.Node
	Keys []string
}

// KeyCount 所有批次的 key 总数
func KeyCount(batches []Batch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Keys)
	}
	return n
}

type roundResult struct {
	state  *NodeScanState
	keys   []string
	cursor int64
}

// Next 执行一轮扫描，按分片返回本轮取到的 key（没有 key 的分片不返回）
// 任一分片失败时整轮失败，所有分片状态保持不变
func (c *Coordinator) Next(ctx context.Context) ([]Batch, error) {
	outstanding := c.outstanding()
	results := make([]roundResult, len(outstanding))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range outstanding {
		g.Go(func() error {
			res, err := s.node.Scan(gctx, redis.ScanArgs{
				Cursor: uint64(s.Cursor),
				Match:  c.opts.Match,
				Count:  c.opts.Count,
				Type:   c.opts.Type,
			})
			if err != nil {
				return &ScanError{Addr: s.addr(), Err: err}
			}
			if res.Cursor > math.MaxInt64 {
				return &ScanError{Addr: s.addr(), Err: errors.Newf("cursor %d out of range", res.Cursor)}
			}

			next := int64(res.Cursor)
			if next == 0 {
				next = cursor.Exhausted
			}
			results[i] = roundResult{state: s, keys: res.Keys, cursor: next}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var batches []Batch
	for _, r := range results {
		r.state.Cursor = r.cursor
		r.state.Scanned += int64(len(r.keys))
		r.state.Keys = r.keys
	}
	c.started = true

	// 所有权交给调用方
	for _, s := range outstanding {
		if len(s.Keys) > 0 {
			batches = append(batches, Batch{Node: s.node, Keys: s.Keys})
		}
		s.Keys = nil
	}
	return batches, nil
}

// Estimate 各分片 DBSIZE 之和
func (c *Coordinator) Estimate(ctx context.Context) (int64, error) {
	totals := make([]int64, len(c.states))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range c.states {
		g.Go(func() error {
			size, err := s.node.DBSize(gctx)
			if err != nil {
				return errors.Wrapf(err, "estimate %s", s.addr())
			}
			totals[i] = size
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var sum int64
	for i, s := range c.states {
		s.Total = totals[i]
		sum += totals[i]
	}
	return sum, nil
}

// Position 当前组合游标，全部扫完时为空串
func (c *Coordinator) Position() string {
	positions := make([]cursor.NodePosition, len(c.states))
	for i, s := range c.states {
		positions[i] = cursor.NodePosition{Host: s.Host, Port: s.Port, Cursor: s.Cursor}
	}
	return cursor.Encode(positions)
}

// Exhausted 是否所有分片都已扫完
func (c *Coordinator) Exhausted() bool {
	return len(c.outstanding()) == 0
}

// Cursor 聚合游标
// 未开始为 0，全部扫完为 -1；单分片时为原生游标，多分片时为剩余分片数
func (c *Coordinator) Cursor() int64 {
	if !c.started {
		return 0
	}
	outstanding := c.outstanding()
	switch {
	case len(outstanding) == 0:
		return cursor.Exhausted
	case len(c.states) == 1:
		return outstanding[0].Cursor
	default:
		return int64(len(outstanding))
	}
}

// Progress 各分片累计的估算总数和已扫描数
func (c *Coordinator) Progress() (total, scanned int64) {
	for _, s := range c.states {
		total += s.Total
		scanned += s.Scanned
	}
	return total, scanned
}

// Shards 分片数量
func (c *Coordinator) Shards() int {
	return len(c.states)
}

func (c *Coordinator) outstanding() []*NodeScanState {
	out := make([]*NodeScanState, 0, len(c.states))
	for _, s := range c.states {
		if !s.Exhausted() {
			out = append(out, s)
		}
	}
	return out
}
