package redis

// PoolStats 连接池统计信息（隐藏 go-redis 类型）
type PoolStats struct {
	Hits       uint32 // 连接池命中次数
	Misses     uint32 // 连接池未命中次数
	Timeouts   uint32 // 超时次数
	TotalConns uint32 // 总连接数
	IdleConns  uint32 // 空闲连接数
	StaleConns uint32 // 过期连接数
}

// ScanArgs 一次 SCAN 调用的参数
type ScanArgs struct {
	Cursor uint64 // 节点原生游标，0 表示从头开始
	Match  string // MATCH 模式，空串等价于 *
	Count  int64  // COUNT 提示
	Type   string // TYPE 过滤（Redis 6+），空串表示不过滤
}

// ScanResult 扫描结果
// Keys 中的字符串按字节原样保存，Redis key 是二进制安全的
type ScanResult struct {
	Keys   []string
	Cursor uint64 // 0 表示该节点已扫描完
}

// PipelineResult Pipeline 中单条命令的执行结果
type PipelineResult struct {
	Val interface{} // 命令返回值
	Err error       // 协议级错误（例如 NOPERM），nil 表示成功
}
