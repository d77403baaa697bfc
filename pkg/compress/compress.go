// Package compress 推送快照的可选压缩
package compress

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType 不支持的压缩算法
var ErrUnknownType = errors.New("compress: unknown type")

// Compressor 压缩器接口，实现需要并发安全
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	Name() string
}

// Type 压缩算法类型
type Type string

const (
	TypeNone   Type = "none"
	TypeSnappy Type = "snappy"
	TypeZstd   Type = "zstd"
	TypeLZ4    Type = "lz4"
)

// New 创建压缩器，空类型等同 none
func New(t Type) (Compressor, error) {
	switch Type(strings.ToLower(string(t))) {
	case "", TypeNone:
		return none{}, nil
	case TypeSnappy:
		return snappyCompressor{}, nil
	case TypeZstd:
		return newZstdCompressor()
	case TypeLZ4:
		return lz4Compressor{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
}

// none 原样返回
type none struct{}

func (none) Compress(src []byte) ([]byte, error)   { return src, nil }
func (none) Decompress(src []byte) ([]byte, error) { return src, nil }
func (none) Name() string                          { return string(TypeNone) }
