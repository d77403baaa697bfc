package serializer

import (
	"bytes"
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/lk2023060901/xdooria-bulk/pkg/pool/bytebuff"
)

// msgpackHandle 是 msgpack 编解码的配置
// RawToString=true, MapType=map[string]interface{}
var msgpackHandle = &codec.MsgpackHandle{}

func init() {
	msgpackHandle.MapType = reflect.TypeOf(map[string]interface{}{})
	msgpackHandle.RawToString = true
}

// Encode 使用 msgpack 编码数据
func Encode(v interface{}) ([]byte, error) {
	buf := bytebuff.Get()
	defer bytebuff.Put(buf)

	enc := codec.NewEncoder(buf, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	// 复制数据，因为 buf 会被回收复用
	result := make([]byte, buf.Len())
	copy(result, buf.B)
	return result, nil
}

// Decode 使用 msgpack 解码数据
func Decode(data []byte, v interface{}) error {
	dec := codec.NewDecoder(bytes.NewReader(data), msgpackHandle)
	return dec.Decode(v)
}
