package scanner

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrScanFailed 某个分片 SCAN 失败，整轮失败
	ErrScanFailed = errors.New("shard scan failed")

	// ErrUnknownNode 组合游标中的分片不在当前拓扑中
	ErrUnknownNode = errors.New("cursor references unknown shard")

	// ErrNoNodes 拓扑为空
	ErrNoNodes = errors.New("no shards to scan")
)

// ScanError 单个分片 SCAN 失败
type ScanError struct {
	Addr string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s on %s: %v", ErrScanFailed, e.Addr, e.Err)
}

// Is 支持 errors.Is(err, ErrScanFailed)
func (e *ScanError) Is(target error) bool {
	return target == ErrScanFailed
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
