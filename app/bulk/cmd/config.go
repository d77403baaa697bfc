package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/cursor"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/manager"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/sink"
	"github.com/lk2023060901/xdooria-bulk/pkg/config"
	"github.com/lk2023060901/xdooria-bulk/pkg/database/redis"
	"github.com/lk2023060901/xdooria-bulk/pkg/logger"
	"github.com/lk2023060901/xdooria-bulk/pkg/otel"
	"github.com/lk2023060901/xdooria-bulk/pkg/prometheus"
	"github.com/lk2023060901/xdooria-bulk/pkg/sentry"
)

// Config bulk 服务配置
type Config struct {
	Log logger.Config `mapstructure:"log"`

	// Redis 目标实例
	Redis redis.Config `mapstructure:"redis"`

	// Manager 任务池与 Runner 参数
	Manager manager.Config `mapstructure:"manager"`

	Prometheus prometheus.Config `mapstructure:"prometheus"`
	Tracing    otel.Config       `mapstructure:"tracing"`

	// Sentry 配置 DSN 后上报失败的任务
	Sentry sentry.Config `mapstructure:"sentry"`

	Sink SinkConfig `mapstructure:"sink"`

	// Job 本次要执行的任务
	Job JobConfig `mapstructure:"job"`
}

// SinkConfig 进度推送
type SinkConfig struct {
	// Publish 把快照 PUBLISH 到 <channel_prefix>:<id>
	Publish       bool   `mapstructure:"publish"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
	Serializer    string `mapstructure:"serializer" validate:"omitempty,oneof=json msgpack"`
	// Compression PUBLISH 前压缩：none snappy zstd lz4
	Compression string `mapstructure:"compression" validate:"omitempty,oneof=none snappy zstd lz4"`

	// Kafka 配置 brokers 和 topic 后同时写入 Kafka
	Kafka sink.KafkaConfig `mapstructure:"kafka"`

	// WebSocketURL 非空时连接该地址推送 JSON 快照
	WebSocketURL string `mapstructure:"websocket_url" validate:"omitempty,url"`
}

// JobConfig 任务参数
type JobConfig struct {
	ID         string `mapstructure:"id"`
	DatabaseID string `mapstructure:"database_id"`
	Kind       string `mapstructure:"kind" validate:"omitempty,oneof=delete unlink"`
	Match      string `mapstructure:"match"`
	Type       string `mapstructure:"type"`
	Count      int64  `mapstructure:"count" validate:"gte=0"`
	Position   string `mapstructure:"position"`
}

func defaultConfig() Config {
	return Config{
		Log:        *logger.DefaultConfig(),
		Manager:    manager.DefaultConfig(),
		Prometheus: *prometheus.DefaultConfig(),
		Tracing:    *otel.DefaultConfig(),
		Sentry:     *sentry.DefaultConfig(),
		Sink: SinkConfig{
			ChannelPrefix: sink.DefaultChannelPrefix,
			Serializer:    "json",
			Compression:   "none",
		},
		Job: JobConfig{
			Kind:  string(model.MutationDelete),
			Match: "*",
		},
	}
}

// flagBindings 命令行参数到配置 key 的映射
var flagBindings = map[string]string{
	"id":            "job.id",
	"database-id":   "job.database_id",
	"kind":          "job.kind",
	"match":         "job.match",
	"type":          "job.type",
	"count":         "job.count",
	"position":      "job.position",
	"publish":       "sink.publish",
	"serializer":    "sink.serializer",
	"compression":   "sink.compression",
	"websocket-url": "sink.websocket_url",
	"log-level":     "log.level",
	"pool-size":     "manager.pool_size",
	"metrics-addr":  "prometheus.http_server.addr",
}

// normalize 处理无法直接映射到配置 key 的参数
func (c *Config) normalize(addr string, metrics bool) error {
	if addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", addr, err)
		}
		c.Redis.Cluster = nil
		c.Redis.Standalone = &redis.NodeConfig{Host: host, Port: port}
	}
	if c.Redis.Standalone == nil && c.Redis.Cluster == nil {
		c.Redis.Standalone = &redis.NodeConfig{Host: "127.0.0.1", Port: 6379}
	}
	if metrics {
		c.Prometheus.HTTPServer.Enabled = true
	}
	return nil
}

// validate 校验配置，起始位置必须是合法的组合游标
func (c *Config) validate() error {
	if err := config.NewValidator().Validate(c); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Prometheus.Validate(); err != nil {
		return err
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	if c.Sentry.Enabled() {
		if err := c.Sentry.Validate(); err != nil {
			return err
		}
	}
	if !cursor.IsValid(c.Job.Position) {
		return fmt.Errorf("invalid position %q", c.Job.Position)
	}
	return nil
}

func (c *Config) request() manager.Request {
	return manager.Request{
		ID:         c.Job.ID,
		DatabaseID: c.Job.DatabaseID,
		Kind:       model.MutationKind(c.Job.Kind),
		Filter: model.Filter{
			Match: c.Job.Match,
			Type:  c.Job.Type,
			Count: c.Job.Count,
		},
		Position: c.Job.Position,
	}
}
