package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SocketCluster/agc-state/pkg/lib/log"
	"github.com/SocketCluster/agc-state/pkg/protocol"
)

// ============================================================================
//                              连接
// ============================================================================

// Conn 一条已接受的 WebSocket 连接
//
// 连接标识在存续期内唯一且稳定，注册期间不会复用。
// 活性单向转换：open -> closed，不可逆。
type Conn struct {
	id string
	ws *websocket.Conn

	// 握手请求的只读快照
	remoteAddr string
	header     http.Header
	query      url.Values

	invokeTimeout time.Duration
	writeTimeout  time.Duration

	// gorilla 要求单写者
	writeMu sync.Mutex

	nextCID   atomic.Uint64
	pendingMu sync.Mutex
	pending   map[uint64]chan protocol.ReplyFrame

	ctx       context.Context
	cancel    context.CancelFunc
	open      atomic.Bool
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, r *http.Request, cfg Config) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Conn{
		id:            id,
		ws:            ws,
		remoteAddr:    r.RemoteAddr,
		header:        r.Header.Clone(),
		query:         r.URL.Query(),
		invokeTimeout: cfg.InvokeTimeout,
		writeTimeout:  cfg.WriteTimeout,
		pending:       make(map[uint64]chan protocol.ReplyFrame),
		ctx:           ctx,
		cancel:        cancel,
	}
	c.open.Store(true)
	return c
}

// ID 连接标识
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr 传输层远端地址
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// HandshakeHeader 握手请求头
func (c *Conn) HandshakeHeader() http.Header {
	return c.header
}

// HandshakeQuery 握手 URL 查询参数
func (c *Conn) HandshakeQuery() url.Values {
	return c.query
}

// IsOpen 连接是否仍然打开
func (c *Conn) IsOpen() bool {
	return c.open.Load()
}

// Context 连接生命周期上下文，连接关闭时取消
func (c *Conn) Context() context.Context {
	return c.ctx
}

// ============================================================================
//                              出站调用
// ============================================================================

// Invoke 发起命名调用并等待对端确认
//
// 超时、连接关闭或对端返回错误应答都算调用失败。
func (c *Conn) Invoke(ctx context.Context, event string, data any) error {
	if !c.IsOpen() {
		return ErrConnClosed
	}

	var payload json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = encoded
	}

	cid := c.nextCID.Add(1)
	ch := make(chan protocol.ReplyFrame, 1)

	c.pendingMu.Lock()
	c.pending[cid] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, cid)
		c.pendingMu.Unlock()
	}()

	if err := c.writeJSON(protocol.CallFrame{Event: event, CID: cid, Data: payload}); err != nil {
		return err
	}

	timer := time.NewTimer(c.invokeTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrConnClosed
	case <-timer.C:
		return ErrInvokeTimeout
	case reply := <-ch:
		if reply.Error != nil {
			return reply.Error
		}
		return nil
	}
}

// handleReply 将应答帧路由到等待的调用
func (c *Conn) handleReply(reply protocol.ReplyFrame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[reply.RID]
	c.pendingMu.Unlock()

	if !ok {
		logger.Debug("收到未知调用的应答",
			"conn_id", log.TruncateID(c.id, 8),
			"rid", reply.RID)
		return
	}

	select {
	case ch <- reply:
	default:
	}
}

// ============================================================================
//                              写入与关闭
// ============================================================================

// writeJSON 串行化一帧并在写超时内发送
func (c *Conn) writeJSON(v any) error {
	if !c.IsOpen() {
		return ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

// Close 关闭连接
//
// 幂等；尝试发送 close 帧后释放底层连接。
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.cancel()

		deadline := time.Now().Add(c.writeTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.ws.Close()
	})
}

// pingLoop 周期性发送 ping 保活
func (c *Conn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("ping 发送失败，关闭连接",
					"conn_id", log.TruncateID(c.id, 8),
					"err", err)
				c.Close()
				return
			}
		}
	}
}
