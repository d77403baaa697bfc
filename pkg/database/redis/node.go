package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Node 单个主分片，批量任务只通过它访问 Redis
// 连接归外部拥有，Node 不负责关闭
type Node interface {
	// Addr 分片地址 host:port
	Addr() string
	// Scan 执行一次 SCAN cursor MATCH pattern COUNT n [TYPE t]
	Scan(ctx context.Context, args ScanArgs) (ScanResult, error)
	// DBSize 当前数据库的 key 数量
	DBSize(ctx context.Context) (int64, error)
	// Exec 以 Pipeline 方式执行一组命令，逐条返回结果
	Exec(ctx context.Context, cmds [][]interface{}) ([]PipelineResult, error)
}

// nodeClient go-redis 中 Node 依赖的最小方法集
type nodeClient interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	ScanType(ctx context.Context, cursor uint64, match string, count int64, keyType string) *redis.ScanCmd
	DBSize(ctx context.Context) *redis.IntCmd
	Pipeline() redis.Pipeliner
}

type node struct {
	addr   string
	client nodeClient
}

// NewNode 包装一个 go-redis 单节点客户端
func NewNode(addr string, client *redis.Client) Node {
	return &node{addr: addr, client: client}
}

func (n *node) Addr() string {
	return n.addr
}

func (n *node) Scan(ctx context.Context, args ScanArgs) (ScanResult, error) {
	match := args.Match
	if match == "" {
		match = "*"
	}

	var cmd *redis.ScanCmd
	if args.Type != "" {
		cmd = n.client.ScanType(ctx, args.Cursor, match, args.Count, args.Type)
	} else {
		cmd = n.client.Scan(ctx, args.Cursor, match, args.Count)
	}

	keys, cursor, err := cmd.Result()
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan %s failed: %w", n.addr, err)
	}
	return ScanResult{Keys: keys, Cursor: cursor}, nil
}

func (n *node) DBSize(ctx context.Context) (int64, error) {
	size, err := n.client.DBSize(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("dbsize %s failed: %w", n.addr, err)
	}
	return size, nil
}

// Exec 执行 Pipeline
// 单条命令的协议错误（如 NOPERM）只体现在对应的 PipelineResult 中；
// 连接级错误会被 go-redis 写入每一条命令，因此同样逐条返回
func (n *node) Exec(ctx context.Context, cmds [][]interface{}) ([]PipelineResult, error) {
	if len(cmds) == 0 {
		return nil, nil
	}

	pipe := n.client.Pipeline()
	pending := make([]*redis.Cmd, len(cmds))
	for i, args := range cmds {
		pending[i] = pipe.Do(ctx, args...)
	}

	// Exec 的返回值是第一条失败命令的错误，结果已经逐条记录
	_, _ = pipe.Exec(ctx)

	results := make([]PipelineResult, len(pending))
	for i, cmd := range pending {
		val, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			err = nil
		}
		results[i] = PipelineResult{Val: val, Err: err}
	}
	return results, nil
}
