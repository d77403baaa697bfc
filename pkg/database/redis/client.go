package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Topology 部署拓扑：返回当前所有主分片
// 单机部署恰好返回一个节点；集群拓扑发现由 go-redis 负责
type Topology interface {
	Masters(ctx context.Context) ([]Node, error)
}

var _ Topology = (*Client)(nil)

// Client Redis 客户端（隐藏 go-redis 类型）
type Client struct {
	universal redis.UniversalClient // *redis.Client 或 *redis.ClusterClient
	cfg       *Config
}

// NewClient 创建 Redis 客户端
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	if cfg.IsCluster() {
		c.universal = redis.NewClusterClient(c.clusterOptions())
	} else {
		c.universal = redis.NewClient(c.standaloneOptions())
	}
	return c, nil
}

// standaloneOptions 单机模式选项
func (c *Client) standaloneOptions() *redis.Options {
	n := c.cfg.Standalone
	p := c.cfg.Pool
	return &redis.Options{
		Addr:            n.Addr(),
		Username:        n.Username,
		Password:        n.Password,
		DB:              n.DB,
		MaxIdleConns:    p.MaxIdleConns,
		MaxActiveConns:  p.MaxOpenConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnMaxIdleTime: p.ConnMaxIdleTime,
		DialTimeout:     p.DialTimeout,
		ReadTimeout:     p.ReadTimeout,
		WriteTimeout:    p.WriteTimeout,
		PoolTimeout:     p.PoolTimeout,
	}
}

// clusterOptions 集群模式选项
func (c *Client) clusterOptions() *redis.ClusterOptions {
	cl := c.cfg.Cluster
	p := c.cfg.Pool
	return &redis.ClusterOptions{
		Addrs:           cl.Addrs,
		Username:        cl.Username,
		Password:        cl.Password,
		MaxIdleConns:    p.MaxIdleConns,
		MaxActiveConns:  p.MaxOpenConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnMaxIdleTime: p.ConnMaxIdleTime,
		DialTimeout:     p.DialTimeout,
		ReadTimeout:     p.ReadTimeout,
		WriteTimeout:    p.WriteTimeout,
		PoolTimeout:     p.PoolTimeout,
	}
}

// Masters 返回所有主分片，按地址排序保证游标编码稳定
func (c *Client) Masters(ctx context.Context) ([]Node, error) {
	switch u := c.universal.(type) {
	case *redis.ClusterClient:
		var (
			mu    sync.Mutex
			nodes []Node
		)
		err := u.ForEachMaster(ctx, func(ctx context.Context, shard *redis.Client) error {
			mu.Lock()
			defer mu.Unlock()
			nodes = append(nodes, NewNode(shard.Options().Addr, shard))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover cluster masters failed: %w", err)
		}
		if len(nodes) == 0 {
			return nil, ErrNoMasters
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Addr() < nodes[j].Addr() })
		return nodes, nil
	case *redis.Client:
		return []Node{NewNode(u.Options().Addr, u)}, nil
	default:
		return nil, ErrNoMasters
	}
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	if err := c.universal.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Publish 发布消息到频道（进度推送使用）
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) error {
	if err := c.universal.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// PoolStats 获取连接池统计信息（隐藏 go-redis 类型）
func (c *Client) PoolStats() PoolStats {
	stats := c.universal.PoolStats()
	return PoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

// Close 关闭客户端
func (c *Client) Close() error {
	if err := c.universal.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}
