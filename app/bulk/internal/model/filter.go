package model

// DefaultScanCount 每个分片每轮 SCAN 的 COUNT 提示
const DefaultScanCount int64 = 10000

// Filter 目标 key 的过滤条件
type Filter struct {
	Match string `json:"match"`          // MATCH 模式
	Type  string `json:"type,omitempty"` // TYPE 过滤，空串不过滤
	Count int64  `json:"count"`          // COUNT 提示
}

// WithDefaults 填充缺省值
func (f Filter) WithDefaults() Filter {
	if f.Match == "" {
		f.Match = "*"
	}
	if f.Count <= 0 {
		f.Count = DefaultScanCount
	}
	return f
}
