package compress

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/lk2023060901/xdooria-bulk/pkg/pool/bytebuff"
)

// lz4Compressor 使用 LZ4 frame 格式，解压不需要预知原始长度
type lz4Compressor struct{}

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	buf := bytebuff.Get()
	defer bytebuff.Put(buf)

	w := lz4.NewWriter(buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
}

func (lz4Compressor) Name() string {
	return string(TypeLZ4)
}
