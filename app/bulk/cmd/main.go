// bulk 对 Redis（单机或集群）按 SCAN 模式批量删除 key
//
//	bulk --addr 127.0.0.1:6379 --match 'session:*' --kind unlink
//
// 中断后可以用输出中的 position 继续：
//
//	bulk --match 'session:*' --position '10.0.0.1:7000@4096||10.0.0.2:7000@17'
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/cursor"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/manager"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/metrics"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/sink"
	"github.com/lk2023060901/xdooria-bulk/pkg/app"
	"github.com/lk2023060901/xdooria-bulk/pkg/compress"
	"github.com/lk2023060901/xdooria-bulk/pkg/config"
	"github.com/lk2023060901/xdooria-bulk/pkg/database/redis"
	"github.com/lk2023060901/xdooria-bulk/pkg/logger"
	"github.com/lk2023060901/xdooria-bulk/pkg/otel"
	"github.com/lk2023060901/xdooria-bulk/pkg/prometheus"
	"github.com/lk2023060901/xdooria-bulk/pkg/sentry"
	"github.com/lk2023060901/xdooria-bulk/pkg/serializer"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(app.AppName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("id", "", "bulk action id (generated when empty)")
	fs.String("database-id", "", "database id reported in snapshots")
	fs.String("kind", string(model.MutationDelete), "mutation: delete or unlink")
	fs.StringP("match", "m", "*", "SCAN MATCH pattern")
	fs.String("type", "", "SCAN TYPE filter")
	fs.Int64("count", 0, "SCAN COUNT hint per shard")
	fs.StringP("position", "p", "", "resume from a composite cursor")
	fs.Bool("publish", false, "PUBLISH progress snapshots to redis")
	fs.String("serializer", "json", "snapshot encoding for --publish: json or msgpack")
	fs.String("compression", "none", "compress published snapshots: none, snappy, zstd or lz4")
	fs.String("websocket-url", "", "push JSON snapshots to this websocket endpoint")
	fs.String("log-level", "info", "log level")
	fs.Int("pool-size", 0, "max concurrently running bulk actions")
	fs.String("metrics-addr", "", "metrics listen address")
	addr := fs.String("addr", "", "standalone redis host:port")
	enableMetrics := fs.Bool("metrics", false, "expose prometheus metrics over http")
	version := fs.BoolP("version", "v", false, "print version")

	cfg := defaultConfig()
	if err := app.LoadConfig(fs, args, &cfg, flagBindings); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitUsage
	}
	if *version {
		fmt.Fprintln(stdout, app.GetInfo().String())
		return exitOK
	}
	if err := cfg.normalize(*addr, *enableMetrics || fs.Changed("metrics-addr")); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return exitUsage
	}

	// 1. 日志
	l, err := logger.New(&cfg.Log, logger.WithContextExtractor(logger.ActionContextExtractor))
	if err != nil {
		fmt.Fprintf(stderr, "failed to create logger: %v\n", err)
		return exitFailed
	}
	logger.SetDefault(l)
	if _, err := app.OnConfigChange(func(m config.Manager) { reloadLogLevel(l, m) }); err != nil {
		l.Warn("failed to watch config file", "error", err)
	}

	// 2. Redis
	rdb, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		l.Error("failed to create redis client", "error", err)
		return exitFailed
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = rdb.Ping(pingCtx)
	cancel()
	closers := []app.Closer{rdb}
	if err != nil {
		l.Error("failed to connect redis", "error", err)
		closeAll(closers)
		return exitFailed
	}

	// 3. 指标与追踪
	prom, err := prometheus.New(&cfg.Prometheus, prometheus.WithLogger(l))
	if err != nil {
		l.Error("failed to create prometheus client", "error", err)
		closeAll(closers)
		return exitFailed
	}
	mt, err := metrics.New(prom)
	if err != nil {
		l.Error("failed to register metrics", "error", err)
		closeAll(closers)
		return exitFailed
	}
	tp, err := otel.New(&cfg.Tracing)
	if err != nil {
		l.Error("failed to create tracer provider", "error", err)
		closeAll(closers)
		return exitFailed
	}
	closers = append(closers, tp)

	// 4. 进度推送
	sinks, err := buildSinks(&cfg, l, rdb, mt, &closers)
	if err != nil {
		l.Error("failed to build sinks", "error", err)
		closeAll(closers)
		return exitFailed
	}

	// 5. 任务管理
	mgr, err := manager.New(cfg.Manager, rdb,
		manager.WithLogger(l),
		manager.WithMetrics(mt),
		manager.WithSink(sinks),
		manager.WithTracer(tp.Tracer("bulk")),
	)
	if err != nil {
		l.Error("failed to create manager", "error", err)
		closeAll(closers)
		return exitFailed
	}

	// 6. 应用：信号到达时 Stop 放弃任务，任务结束时主动退出
	application := app.NewBaseApp(app.WithName(app.AppName), app.WithLogger(l))
	j := newJob(mgr, cfg.request(), application.Quit)

	application.AppendServer(prom, j)
	application.AppendCloser(closers...)
	application.AppendCloser(mgr)

	if err := application.Run(); err != nil {
		l.Error("bulk exited with error", "error", err)
		return exitFailed
	}

	overview, runErr := j.Result()
	if overview == nil {
		return exitFailed
	}
	return report(stdout, stderr, overview, runErr)
}

// buildSinks 日志和指标总是启用，其余按配置启用；需要关闭的连接追加到 closers
func buildSinks(cfg *Config, l logger.Logger, rdb *redis.Client, mt *metrics.Metrics, closers *[]app.Closer) (sink.Multi, error) {
	sinks := sink.Multi{sink.NewLog(l), sink.NewMetrics(mt)}

	ser, err := serializer.ByName(cfg.Sink.Serializer)
	if err != nil {
		return nil, err
	}

	if cfg.Sink.Publish {
		c, err := compress.New(compress.Type(cfg.Sink.Compression))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.NewRedis(rdb, ser, cfg.Sink.ChannelPrefix, sink.WithCompressor(c)))
	}

	if cfg.Sink.Kafka.Enabled() {
		w := sink.NewKafkaWriter(cfg.Sink.Kafka)
		*closers = append(*closers, w)
		sinks = append(sinks, sink.NewKafka(w, ser))
	}

	if cfg.Sink.WebSocketURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ws, err := sink.DialWebSocket(ctx, cfg.Sink.WebSocketURL, 0)
		cancel()
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, ws)
		sinks = append(sinks, ws)
	}

	if cfg.Sentry.Enabled() {
		sc, err := sentry.New(&cfg.Sentry)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, sc)
		sinks = append(sinks, sink.NewSentry(sc))
	}
	return sinks, nil
}

// reloadLogLevel 配置文件中的 log.level 变化时热更新，--log-level 显式指定时以参数为准
func reloadLogLevel(l *logger.BaseLogger, m config.Manager) {
	level := logger.Level(m.GetString("log.level"))
	if level == "" || level == l.GetLevel() {
		return
	}
	if err := l.SetLevel(level); err != nil {
		l.Warn("ignore invalid log level", "level", level, "error", err)
		return
	}
	l.Info("log level changed", "level", level)
}

// closeAll 启动失败时逆序释放已创建的组件
func closeAll(closers []app.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i].Close()
	}
}

// report 输出最终快照，未完成时提示续跑位置
func report(stdout, stderr io.Writer, o *model.Overview, runErr error) int {
	data, err := serializer.NewJSON().Serialize(o)
	if err != nil {
		fmt.Fprintf(stderr, "failed to encode overview: %v\n", err)
		return exitFailed
	}
	fmt.Fprintln(stdout, string(data))

	if o.Status == model.StatusCompleted {
		return exitOK
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "bulk action %s: %v\n", o.Status, runErr)
	}
	switch {
	case o.Progress.Position == "":
	case !cursor.IsValid(o.Progress.Position):
		// 分片地址含 - 或 : 时组合游标无法再解析
		logger.Default().Warn("position cannot be used to resume", "id", o.ID, "position", o.Progress.Position)
	default:
		fmt.Fprintf(stderr, "resume with: --position '%s'\n", o.Progress.Position)
	}
	return exitFailed
}
