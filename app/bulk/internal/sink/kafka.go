package sink

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/pkg/serializer"
)

// MessageWriter 写入 Kafka，*kafka.Writer 实现了该接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaConfig Kafka 推送配置
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers" json:"brokers" yaml:"brokers"`
	Topic        string        `mapstructure:"topic" json:"topic" yaml:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
}

// Enabled 是否配置了 broker 和 topic
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// NewKafkaWriter 按任务 ID 做 hash 分区，同一任务的快照保持顺序
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}
}

// Kafka 把快照写入 topic，key 为任务 ID
type Kafka struct {
	writer     MessageWriter
	serializer serializer.Serializer
}

// NewKafka 创建 Kafka Sink，serializer 为空时使用 JSON
func NewKafka(w MessageWriter, s serializer.Serializer) *Kafka {
	if s == nil {
		s = serializer.NewJSON()
	}
	return &Kafka{writer: w, serializer: s}
}

func (s *Kafka) Send(ctx context.Context, o *model.Overview) error {
	payload, err := s.serializer.Serialize(o)
	if err != nil {
		return errors.Wrapf(err, "encode overview of %s", o.ID)
	}

	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(s.serializer.ContentType())},
			{Key: "status", Value: []byte(o.Status)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write overview of %s to kafka", o.ID)
	}
	return nil
}
