package redis

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("redis config is nil")

	// ErrInvalidConfig 配置无效（Standalone/Cluster 必须且只能配置一种）
	ErrInvalidConfig = errors.New("invalid redis config: must specify exactly one of standalone or cluster mode")

	// ErrNoClusterAddrs 集群模式未配置种子节点
	ErrNoClusterAddrs = errors.New("invalid redis config: cluster mode requires at least one address")

	// ErrNoMasters 拓扑中没有可用的主节点
	ErrNoMasters = errors.New("redis: no master nodes available")
)
