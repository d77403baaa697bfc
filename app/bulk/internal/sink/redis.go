package sink

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/pkg/compress"
	"github.com/lk2023060901/xdooria-bulk/pkg/serializer"
)

// Publisher 发布消息，*redis.Client 实现了该接口
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Redis 通过 PUBLISH 推送快照到 <prefix>:<id>
type Redis struct {
	publisher  Publisher
	serializer serializer.Serializer
	compressor compress.Compressor
	prefix     string
}

// RedisOption 可选项
type RedisOption func(*Redis)

// WithCompressor 发布前压缩，订阅方需要用同一算法解压
func WithCompressor(c compress.Compressor) RedisOption {
	return func(s *Redis) {
		if c != nil {
			s.compressor = c
		}
	}
}

// NewRedis 创建 Redis Sink，serializer 为空时使用 JSON
func NewRedis(p Publisher, s serializer.Serializer, prefix string, opts ...RedisOption) *Redis {
	if s == nil {
		s = serializer.NewJSON()
	}
	r := &Redis{publisher: p, serializer: s, prefix: prefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (s *Redis) Send(ctx context.Context, o *model.Overview) error {
	payload, err := s.serializer.Serialize(o)
	if err != nil {
		return errors.Wrapf(err, "encode overview of %s", o.ID)
	}
	if s.compressor != nil {
		if payload, err = s.compressor.Compress(payload); err != nil {
			return errors.Wrapf(err, "compress overview of %s with %s", o.ID, s.compressor.Name())
		}
	}

	channel := Channel(s.prefix, o.ID)
	if err := s.publisher.Publish(ctx, channel, payload); err != nil {
		return errors.Wrapf(err, "publish to %s", channel)
	}
	return nil
}
