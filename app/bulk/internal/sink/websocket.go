package sink

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/lk2023060901/xdooria-bulk/app/bulk/internal/model"
	"github.com/lk2023060901/xdooria-bulk/pkg/serializer"
)

// ErrSocketClosed WebSocket 已关闭
var ErrSocketClosed = errors.New("websocket sink closed")

const defaultWriteTimeout = 10 * time.Second

// WebSocket 以 JSON 文本帧推送快照
// gorilla 的连接不支持并发写，这里串行化
type WebSocket struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	serializer   serializer.Serializer
	writeTimeout time.Duration
	owned        bool // Close 时同时关闭底层连接
	closed       bool
}

// NewWebSocket 包装一个已建立的连接，连接生命周期仍由调用方管理
func NewWebSocket(conn *websocket.Conn, writeTimeout time.Duration) *WebSocket {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WebSocket{conn: conn, serializer: serializer.NewJSON(), writeTimeout: writeTimeout}
}

// DialWebSocket 连接 url 并返回 Sink，Close 时一并关闭连接
func DialWebSocket(ctx context.Context, url string, writeTimeout time.Duration) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	s := NewWebSocket(conn, writeTimeout)
	s.owned = true
	return s, nil
}

func (s *WebSocket) Send(ctx context.Context, o *model.Overview) error {
	data, err := s.serializer.Serialize(o)
	if err != nil {
		return errors.Wrap(err, "encode overview")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSocketClosed
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write overview")
	}
	return nil
}

// Close 发送关闭帧，之后的 Send 返回 ErrSocketClosed
func (s *WebSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bulk action finished")
	err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
	if s.owned {
		err = errors.CombineErrors(err, s.conn.Close())
	}
	return err
}
