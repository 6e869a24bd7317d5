// Package transport 实现状态服务器的 WebSocket 传输层
//
// 单一监听端口同时承载三类请求：WebSocket 升级（集群协议）、
// 明文 GET /health-check 探活、其余路径一律 404。升级前按序
// 执行握手拦截器，任何一道拒绝都会以对应的 HTTP 状态码和
// JSON 错误体中止握手，连接不会被接受。
//
// 帧格式为 JSON 文本消息，双向对称：调用帧携带 event/cid/data，
// 应答帧以 rid 关联并携带 data 或 error。
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/SocketCluster/agc-state/pkg/lib/log"
	"github.com/SocketCluster/agc-state/pkg/protocol"
)

var logger = log.Logger("transport/ws")

// ============================================================================
//                              接口定义
// ============================================================================

// HandshakeInfo 握手请求的只读视图
type HandshakeInfo struct {
	// RemoteAddr 传输层远端地址
	RemoteAddr string

	// Header 握手请求头
	Header http.Header

	// Query 升级 URL 的查询参数
	Query map[string][]string
}

// QueryValue 返回查询参数的首个值
func (h *HandshakeInfo) QueryValue(key string) string {
	values := h.Query[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Interceptor 握手拦截器
//
// 每条新连接在升级前按注册顺序执行一次；返回非 nil
// 即拒绝连接，后续拦截器不再执行。
type Interceptor func(info *HandshakeInfo) *protocol.Error

// ProcedureHandler 入站过程处理器
//
// 返回值会作为应答载荷编码；返回 *protocol.Error 时原样
// 回传给对端，其他错误以 InternalError 包装。
type ProcedureHandler func(ctx context.Context, conn *Conn, data json.RawMessage) (any, error)

// ============================================================================
//                              服务器
// ============================================================================

// Server WebSocket 传输服务器
type Server struct {
	config Config

	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener

	interceptors []Interceptor

	procMu     sync.RWMutex
	procedures map[string]ProcedureHandler

	connMu sync.RWMutex
	conns  map[string]*Conn

	cbMu          sync.RWMutex
	onConnection  []func(*Conn)
	onDisconnect  []func(*Conn)
	onHandshakeNo []func(remoteAddr string, perr *protocol.Error)

	running int32
	closed  int32
}

// NewServer 创建传输服务器
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	return &Server{
		config: cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			// 集群内部服务，不做同源限制
			CheckOrigin: func(*http.Request) bool { return true },
		},
		procedures: make(map[string]ProcedureHandler),
		conns:      make(map[string]*Conn),
	}, nil
}

// ============================================================================
//                              注册接口
// ============================================================================

// AddInterceptor 追加握手拦截器
//
// 必须在 Start 之前完成注册。
func (s *Server) AddInterceptor(fn Interceptor) {
	s.interceptors = append(s.interceptors, fn)
}

// RegisterProcedure 注册入站过程处理器
func (s *Server) RegisterProcedure(name string, handler ProcedureHandler) {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	s.procedures[name] = handler
}

// OnConnection 注册连接建立回调
func (s *Server) OnConnection(fn func(*Conn)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onConnection = append(s.onConnection, fn)
}

// OnDisconnect 注册连接断开回调
func (s *Server) OnDisconnect(fn func(*Conn)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onDisconnect = append(s.onDisconnect, fn)
}

// OnHandshakeRejected 注册握手拒绝回调
func (s *Server) OnHandshakeRejected(fn func(remoteAddr string, perr *protocol.Error)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onHandshakeNo = append(s.onHandshakeNo, fn)
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动服务器
func (s *Server) Start(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyStarted
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return fmt.Errorf("transport: listen: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.HandshakeTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("传输服务器异常退出", "err", err)
		}
	}()

	logger.Info("传输服务器已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务器
//
// 先关闭所有活动连接（触发断开回调），再关闭监听。
func (s *Server) Stop(ctx context.Context) error {
	if atomic.LoadInt32(&s.running) == 0 {
		return ErrServerNotStarted
	}
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	s.connMu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.RUnlock()

	for _, c := range conns {
		s.dropConn(c)
	}

	var err error
	if s.httpServer != nil {
		err = multierr.Append(err, s.httpServer.Shutdown(ctx))
	}

	logger.Info("传输服务器已停止")
	return err
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return fmt.Sprintf(":%d", s.config.Port)
}

// ConnCount 返回当前活动连接数
func (s *Server) ConnCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.conns)
}

// ============================================================================
//                              HTTP 路由
// ============================================================================

// ServeHTTP 路由入站请求
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleUpgrade(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/health-check" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	http.NotFound(w, r)
}

// handleUpgrade 执行握手拦截并升级连接
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	info := &HandshakeInfo{
		RemoteAddr: r.RemoteAddr,
		Header:     r.Header,
		Query:      r.URL.Query(),
	}

	for _, intercept := range s.interceptors {
		perr := intercept(info)
		if perr == nil {
			continue
		}

		logger.Warn("握手被拒绝",
			"remote_addr", info.RemoteAddr,
			"name", perr.Name,
			"message", perr.Message)
		s.notifyHandshakeRejected(info.RemoteAddr, perr)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rejectionStatus(perr))
		_ = json.NewEncoder(w).Encode(perr)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		logger.Debug("连接升级失败", "remote_addr", r.RemoteAddr, "err", err)
		return
	}

	conn := newConn(uuid.New().String(), ws, r, s.config)

	s.connMu.Lock()
	s.conns[conn.id] = conn
	s.connMu.Unlock()

	logger.Debug("连接已建立",
		"conn_id", log.TruncateID(conn.id, 8),
		"remote_addr", conn.remoteAddr)

	s.cbMu.RLock()
	callbacks := make([]func(*Conn), len(s.onConnection))
	copy(callbacks, s.onConnection)
	s.cbMu.RUnlock()
	for _, cb := range callbacks {
		go cb(conn)
	}

	go s.readLoop(conn)
	go conn.pingLoop(s.config.PingInterval)
}

// rejectionStatus 将握手拒绝映射为 HTTP 状态码
func rejectionStatus(perr *protocol.Error) int {
	switch perr.Name {
	case protocol.ErrNameAuthentication:
		return http.StatusUnauthorized
	case protocol.ErrNameCompatibility:
		return http.StatusUpgradeRequired
	default:
		return http.StatusForbidden
	}
}

// ============================================================================
//                              帧处理
// ============================================================================

// wireFrame 入站帧的统一视图
//
// 调用帧携带 event，应答帧携带 rid，按此区分。
type wireFrame struct {
	Event string          `json:"event,omitempty"`
	CID   uint64          `json:"cid,omitempty"`
	RID   uint64          `json:"rid,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *protocol.Error `json:"error,omitempty"`
}

// readLoop 连接的读循环
//
// 任何读错误（包括超过保活期限）都结束循环并废弃连接。
func (s *Server) readLoop(c *Conn) {
	defer s.dropConn(c)

	c.ws.SetReadLimit(s.config.MaxMessageSize)
	pongWait := s.config.PingInterval + s.config.PingInterval/4
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			logger.Debug("读循环结束",
				"conn_id", log.TruncateID(c.id, 8),
				"err", err)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var f wireFrame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Debug("丢弃无法解析的帧",
				"conn_id", log.TruncateID(c.id, 8),
				"err", err)
			continue
		}

		switch {
		case f.Event != "":
			// 每个入站请求作为独立任务处理，互不阻塞
			go s.dispatch(c, f)
		case f.RID != 0:
			c.handleReply(protocol.ReplyFrame{RID: f.RID, Data: f.Data, Error: f.Error})
		default:
			logger.Debug("丢弃未知帧", "conn_id", log.TruncateID(c.id, 8))
		}
	}
}

// dispatch 执行过程处理器并回写应答
func (s *Server) dispatch(c *Conn, f wireFrame) {
	s.procMu.RLock()
	handler := s.procedures[f.Event]
	s.procMu.RUnlock()

	reply := protocol.ReplyFrame{RID: f.CID}

	switch {
	case handler == nil:
		reply.Error = protocol.NewError(protocol.ErrNameBadRequest,
			"Unknown procedure %q", f.Event)
	default:
		result, err := handler(c.ctx, c, f.Data)
		switch {
		case err != nil:
			if perr, ok := err.(*protocol.Error); ok {
				reply.Error = perr
			} else {
				logger.Error("过程处理器失败",
					"event", f.Event,
					"conn_id", log.TruncateID(c.id, 8),
					"err", err)
				reply.Error = protocol.NewError(protocol.ErrNameInternal,
					"Internal server error")
			}
		case result != nil:
			data, merr := json.Marshal(result)
			if merr != nil {
				logger.Error("应答编码失败", "event", f.Event, "err", merr)
				reply.Error = protocol.NewError(protocol.ErrNameInternal,
					"Internal server error")
			} else {
				reply.Data = data
			}
		}
	}

	// cid 为 0 的调用是单向通知，不回写应答
	if f.CID == 0 {
		return
	}

	if err := c.writeJSON(reply); err != nil {
		logger.Debug("应答写入失败",
			"event", f.Event,
			"conn_id", log.TruncateID(c.id, 8),
			"err", err)
	}
}

// ============================================================================
//                              连接管理
// ============================================================================

// dropConn 关闭连接并通知断开回调，幂等
func (s *Server) dropConn(c *Conn) {
	s.connMu.Lock()
	_, tracked := s.conns[c.id]
	delete(s.conns, c.id)
	s.connMu.Unlock()

	c.Close()

	if !tracked {
		return
	}

	logger.Debug("连接已断开", "conn_id", log.TruncateID(c.id, 8))

	s.cbMu.RLock()
	callbacks := make([]func(*Conn), len(s.onDisconnect))
	copy(callbacks, s.onDisconnect)
	s.cbMu.RUnlock()
	for _, cb := range callbacks {
		go cb(c)
	}
}

// notifyHandshakeRejected 通知握手拒绝回调
func (s *Server) notifyHandshakeRejected(remoteAddr string, perr *protocol.Error) {
	s.cbMu.RLock()
	callbacks := make([]func(string, *protocol.Error), len(s.onHandshakeNo))
	copy(callbacks, s.onHandshakeNo)
	s.cbMu.RUnlock()
	for _, cb := range callbacks {
		go cb(remoteAddr, perr)
	}
}
