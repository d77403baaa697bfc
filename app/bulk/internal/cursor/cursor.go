// Package cursor 组合游标编解码
//
// 每个分片编码为 host:port@cursor，分片之间用 || 连接，例如
// 172.17.0.1:7001@22||172.17.0.1:7002@33。已扫完的分片不出现在编码结果中。
package cursor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	nodesSeparator  = "||"
	cursorSeparator = "@"
	// Exhausted 分片已扫完的游标值
	Exhausted int64 = -1
)

var pattern = regexp.MustCompile(`^[a-z0-9.]+:[0-9]+@-?[0-9]+(\|\|[a-z0-9.]+:[0-9]+@-?[0-9]+)*$`)

// NodePosition 单个分片的扫描位置
type NodePosition struct {
	Host   string
	Port   int
	Cursor int64 // 负数表示已扫完
}

// Addr 返回 host:port
func (p NodePosition) Addr() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// IsValid 只做语法检查，空串合法
func IsValid(s string) bool {
	return s == "" || pattern.MatchString(s)
}

// Encode 编码仍有剩余工作的分片，全部扫完时返回空串
func Encode(positions []NodePosition) string {
	var b strings.Builder
	for _, p := range positions {
		if p.Cursor < 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(nodesSeparator)
		}
		b.WriteString(strings.ToLower(p.Host))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.Port))
		b.WriteString(cursorSeparator)
		b.WriteString(strconv.FormatInt(p.Cursor, 10))
	}
	return b.String()
}

// Decode 解析组合游标，丢弃游标为负数的分片
// 语法错误返回 *FormatError，不会返回部分结果
func Decode(s string) ([]NodePosition, error) {
	if s == "" {
		return []NodePosition{}, nil
	}
	if !pattern.MatchString(s) {
		return nil, &FormatError{Input: s}
	}

	tokens := strings.Split(s, nodesSeparator)
	positions := make([]NodePosition, 0, len(tokens))
	for _, token := range tokens {
		addr, rawCursor, _ := strings.Cut(token, cursorSeparator)
		host, rawPort, _ := strings.Cut(addr, ":")

		port, err := strconv.Atoi(rawPort)
		if err != nil {
			return nil, &FormatError{Input: s, Reason: errors.Wrapf(err, "port of %s", addr).Error()}
		}
		c, err := strconv.ParseInt(rawCursor, 10, 64)
		if err != nil {
			return nil, &FormatError{Input: s, Reason: errors.Wrapf(err, "cursor of %s", addr).Error()}
		}
		if c < 0 {
			continue
		}
		positions = append(positions, NodePosition{Host: host, Port: port, Cursor: c})
	}
	return positions, nil
}
