package serializer

import (
	"encoding/json"
	"errors"
	"strings"
)

// 错误定义
var (
	ErrUnknownSerializer = errors.New("serializer: unknown serializer")
)

// Serializer 序列化器接口
type Serializer interface {
	// Serialize 序列化
	Serialize(v any) ([]byte, error)
	// Deserialize 反序列化
	Deserialize(data []byte, v any) error
	// ContentType 内容类型（用于日志追踪）
	ContentType() string
}

// JSON JSON 序列化器
type JSON struct{}

// NewJSON 创建 JSON 序列化器
func NewJSON() *JSON {
	return &JSON{}
}

// Serialize 序列化为 JSON
func (s *JSON) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Deserialize 从 JSON 反序列化
func (s *JSON) Deserialize(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ContentType 返回内容类型
func (s *JSON) ContentType() string {
	return "application/json"
}

// MsgPack msgpack 序列化器，字段名沿用 json tag
type MsgPack struct{}

// NewMsgPack 创建 msgpack 序列化器
func NewMsgPack() *MsgPack {
	return &MsgPack{}
}

// Serialize 序列化为 msgpack
func (s *MsgPack) Serialize(v any) ([]byte, error) {
	return Encode(v)
}

// Deserialize 从 msgpack 反序列化
func (s *MsgPack) Deserialize(data []byte, v any) error {
	return Decode(data, v)
}

// ContentType 返回内容类型
func (s *MsgPack) ContentType() string {
	return "application/msgpack"
}

// ByName 按名称返回序列化器：json 或 msgpack
func ByName(name string) (Serializer, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return NewJSON(), nil
	case "msgpack":
		return NewMsgPack(), nil
	default:
		return nil, ErrUnknownSerializer
	}
}
