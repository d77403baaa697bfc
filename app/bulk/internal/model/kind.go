package model

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// MutationKind 对每个 key 执行的变更类型
type MutationKind string

const (
	// MutationDelete 同步删除 (DEL)
	MutationDelete MutationKind = "delete"
	// MutationUnlink 异步删除 (UNLINK)
	MutationUnlink MutationKind = "unlink"
)

// ErrUnknownMutationKind 不支持的变更类型
var ErrUnknownMutationKind = errors.New("unknown mutation kind")

// CommandBuilder 根据 key 构造一条 Redis 命令
type CommandBuilder func(key string) []interface{}

// ParseMutationKind 解析变更类型（忽略大小写）
func ParseMutationKind(s string) (MutationKind, error) {
	k := MutationKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", errors.Wrapf(ErrUnknownMutationKind, "%q", s)
	}
	return k, nil
}

// Valid 是否为已知类型
func (k MutationKind) Valid() bool {
	return k == MutationDelete || k == MutationUnlink
}

// Command 对应的 Redis 命令名
func (k MutationKind) Command() string {
	switch k {
	case MutationUnlink:
		return "UNLINK"
	default:
		return "DEL"
	}
}

// CommandFor 返回变更类型默认的命令构造器
func CommandFor(kind MutationKind) CommandBuilder {
	name := kind.Command()
	return func(key string) []interface{} {
		return []interface{}{name, key}
	}
}
