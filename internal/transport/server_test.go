package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocketCluster/agc-state/pkg/protocol"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// testConfig 返回适合测试的传输配置
//
// 端口 0 由系统分配，保活间隔放宽避免测试中途触发读超时。
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.PingInterval = 5 * time.Second
	cfg.InvokeTimeout = 2 * time.Second
	return cfg
}

// startServer 启动测试服务器，返回服务器和 host:port 地址
func startServer(t *testing.T, cfg Config, setup func(*Server)) (*Server, string) {
	t.Helper()

	server, err := NewServer(cfg)
	require.NoError(t, err)
	if setup != nil {
		setup(server)
	}

	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})

	_, port, err := net.SplitHostPort(server.Addr())
	require.NoError(t, err)
	return server, "127.0.0.1:" + port
}

// dialWS 建立客户端 WebSocket 连接
func dialWS(t *testing.T, addr, path string) *websocket.Conn {
	t.Helper()

	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+path, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// ============================================================================
//                              HTTP 路由
// ============================================================================

// TestServerHealthCheck 测试探活端点
//
// 场景：明文 GET 请求命中 /health-check 与其他路径
// 预期：探活返回 200 OK，其余路径 404
func TestServerHealthCheck(t *testing.T) {
	_, addr := startServer(t, testConfig(), nil)

	t.Run("HealthCheck", func(t *testing.T) {
		resp, err := http.Get("http://" + addr + "/health-check")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", string(body))
	})

	t.Run("UnknownPath", func(t *testing.T) {
		resp, err := http.Get("http://" + addr + "/nope")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Log("✅ ServerHealthCheck 测试通过")
}

// ============================================================================
//                              握手拦截
// ============================================================================

// TestServerHandshakeInterceptor 测试握手拦截器
//
// 场景：拦截器放行、认证拒绝、版本拒绝
// 预期：拒绝时返回对应 HTTP 状态码和 JSON 错误体，连接不建立
func TestServerHandshakeInterceptor(t *testing.T) {
	var secondCalled atomic.Bool

	server, addr := startServer(t, testConfig(), func(s *Server) {
		s.AddInterceptor(func(info *HandshakeInfo) *protocol.Error {
			switch info.QueryValue("mode") {
			case "unauthorized":
				return protocol.NewError(protocol.ErrNameAuthentication,
					"Cannot connect without a valid authKey")
			case "incompatible":
				return protocol.NewError(protocol.ErrNameCompatibility,
					"Version mismatch")
			}
			return nil
		})
		s.AddInterceptor(func(*HandshakeInfo) *protocol.Error {
			secondCalled.Store(true)
			return nil
		})
	})

	t.Run("Accept", func(t *testing.T) {
		ws := dialWS(t, addr, "/?mode=ok")
		require.NotNil(t, ws)
		assert.True(t, secondCalled.Load(), "放行时应执行后续拦截器")
	})

	t.Run("RejectAuthentication", func(t *testing.T) {
		secondCalled.Store(false)

		ws, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/?mode=unauthorized", nil)
		require.Error(t, err)
		require.Nil(t, ws)
		require.NotNil(t, resp)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var perr protocol.Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&perr))
		assert.Equal(t, protocol.ErrNameAuthentication, perr.Name)
		assert.NotEmpty(t, perr.Message)
		assert.False(t, secondCalled.Load(), "拒绝后不应执行后续拦截器")
	})

	t.Run("RejectCompatibility", func(t *testing.T) {
		ws, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/?mode=incompatible", nil)
		require.Error(t, err)
		require.Nil(t, ws)
		require.NotNil(t, resp)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

		var perr protocol.Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&perr))
		assert.Equal(t, protocol.ErrNameCompatibility, perr.Name)
	})

	t.Run("RejectedConnNotTracked", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			return server.ConnCount() <= 1
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Log("✅ ServerHandshakeInterceptor 测试通过")
}

// ============================================================================
//                              过程分发
// ============================================================================

// TestServerProcedureDispatch 测试入站过程分发
//
// 场景：已注册过程、未知过程、类型化错误、内部错误、单向通知
// 预期：应答以 rid 关联，错误按类别回传，通知不产生应答
func TestServerProcedureDispatch(t *testing.T) {
	var noteCount atomic.Int32

	_, addr := startServer(t, testConfig(), func(s *Server) {
		s.RegisterProcedure("echo", func(_ context.Context, _ *Conn, data json.RawMessage) (any, error) {
			var payload map[string]string
			if err := json.Unmarshal(data, &payload); err != nil {
				return nil, err
			}
			return payload, nil
		})
		s.RegisterProcedure("refuse", func(context.Context, *Conn, json.RawMessage) (any, error) {
			return nil, protocol.NewError(protocol.ErrNameNotReady, "Not ready yet")
		})
		s.RegisterProcedure("explode", func(context.Context, *Conn, json.RawMessage) (any, error) {
			return nil, errors.New("boom")
		})
		s.RegisterProcedure("note", func(context.Context, *Conn, json.RawMessage) (any, error) {
			noteCount.Add(1)
			return nil, nil
		})
	})

	ws := dialWS(t, addr, "/")

	call := func(event string, cid uint64, data any) wireFrame {
		t.Helper()
		payload, err := json.Marshal(data)
		require.NoError(t, err)
		require.NoError(t, ws.WriteJSON(wireFrame{Event: event, CID: cid, Data: payload}))

		var reply wireFrame
		require.NoError(t, ws.ReadJSON(&reply))
		return reply
	}

	t.Run("Echo", func(t *testing.T) {
		reply := call("echo", 1, map[string]string{"msg": "hello"})
		assert.Equal(t, uint64(1), reply.RID)
		require.Nil(t, reply.Error)

		var result map[string]string
		require.NoError(t, json.Unmarshal(reply.Data, &result))
		assert.Equal(t, "hello", result["msg"])
	})

	t.Run("UnknownProcedure", func(t *testing.T) {
		reply := call("missing", 2, nil)
		assert.Equal(t, uint64(2), reply.RID)
		require.NotNil(t, reply.Error)
		assert.Equal(t, protocol.ErrNameBadRequest, reply.Error.Name)
	})

	t.Run("TypedError", func(t *testing.T) {
		reply := call("refuse", 3, nil)
		require.NotNil(t, reply.Error)
		assert.Equal(t, protocol.ErrNameNotReady, reply.Error.Name)
		assert.Equal(t, "Not ready yet", reply.Error.Message)
	})

	t.Run("InternalError", func(t *testing.T) {
		reply := call("explode", 4, nil)
		require.NotNil(t, reply.Error)
		assert.Equal(t, protocol.ErrNameInternal, reply.Error.Name)
		// 内部错误细节不应泄露给对端
		assert.NotContains(t, reply.Error.Message, "boom")
	})

	t.Run("NotificationNoReply", func(t *testing.T) {
		// cid 为 0 的调用是单向通知
		require.NoError(t, ws.WriteJSON(wireFrame{Event: "note"}))

		assert.Eventually(t, func() bool {
			return noteCount.Load() == 1
		}, 2*time.Second, 10*time.Millisecond)

		// 下一个应答必须属于后续调用，而非通知
		reply := call("echo", 5, map[string]string{"msg": "after"})
		assert.Equal(t, uint64(5), reply.RID)
	})

	t.Log("✅ ServerProcedureDispatch 测试通过")
}

// ============================================================================
//                              出站调用
// ============================================================================

// TestServerInvoke 测试服务端到客户端的出站调用
//
// 场景：客户端正常应答、错误应答、不应答
// 预期：Invoke 分别返回 nil、类型化错误、超时错误
func TestServerInvoke(t *testing.T) {
	cfg := testConfig()
	cfg.InvokeTimeout = 200 * time.Millisecond

	connCh := make(chan *Conn, 1)
	_, addr := startServer(t, cfg, func(s *Server) {
		s.OnConnection(func(c *Conn) { connCh <- c })
	})

	waitConn := func() *Conn {
		t.Helper()
		select {
		case c := <-connCh:
			return c
		case <-time.After(2 * time.Second):
			t.Fatal("等待连接建立超时")
			return nil
		}
	}

	t.Run("Success", func(t *testing.T) {
		ws := dialWS(t, addr, "/")
		sc := waitConn()

		go func() {
			var f wireFrame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}
			_ = ws.WriteJSON(map[string]any{"rid": f.CID, "data": map[string]bool{"ok": true}})
		}()

		err := sc.Invoke(context.Background(), "greet", map[string]string{"msg": "hi"})
		assert.NoError(t, err)
	})

	t.Run("ErrorReply", func(t *testing.T) {
		ws := dialWS(t, addr, "/")
		sc := waitConn()

		go func() {
			var f wireFrame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}
			_ = ws.WriteJSON(map[string]any{
				"rid":   f.CID,
				"error": map[string]string{"name": protocol.ErrNameNotReady, "message": "later"},
			})
		}()

		err := sc.Invoke(context.Background(), "greet", nil)
		require.Error(t, err)
		assert.True(t, protocol.IsErrorNamed(err, protocol.ErrNameNotReady))
	})

	t.Run("Timeout", func(t *testing.T) {
		dialWS(t, addr, "/")
		sc := waitConn()

		err := sc.Invoke(context.Background(), "greet", nil)
		assert.ErrorIs(t, err, ErrInvokeTimeout)
	})

	t.Log("✅ ServerInvoke 测试通过")
}

// ============================================================================
//                              生命周期
// ============================================================================

// TestServerLifecycle 测试启动停止语义
//
// 场景：重复启动、未启动即停止、停止后连接关闭
// 预期：返回对应哨兵错误，停止会断开所有活动连接
func TestServerLifecycle(t *testing.T) {
	t.Run("DoubleStart", func(t *testing.T) {
		server, _ := startServer(t, testConfig(), nil)
		assert.ErrorIs(t, server.Start(context.Background()), ErrServerAlreadyStarted)
	})

	t.Run("StopBeforeStart", func(t *testing.T) {
		server, err := NewServer(testConfig())
		require.NoError(t, err)
		assert.ErrorIs(t, server.Stop(context.Background()), ErrServerNotStarted)
	})

	t.Run("StopClosesConns", func(t *testing.T) {
		server, addr := startServer(t, testConfig(), nil)
		ws := dialWS(t, addr, "/")

		require.Eventually(t, func() bool {
			return server.ConnCount() == 1
		}, 2*time.Second, 10*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, server.Stop(ctx))

		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := ws.ReadMessage()
		assert.Error(t, err, "停止后客户端读取应失败")
	})

	t.Log("✅ ServerLifecycle 测试通过")
}

// ============================================================================
//                              连接回调
// ============================================================================

// TestServerDisconnectCallback 测试断开回调
//
// 场景：客户端主动断开
// 预期：断开回调触发一次，连接从活动集合移除
func TestServerDisconnectCallback(t *testing.T) {
	var disconnects atomic.Int32

	server, addr := startServer(t, testConfig(), func(s *Server) {
		s.OnDisconnect(func(*Conn) { disconnects.Add(1) })
	})

	ws := dialWS(t, addr, "/")
	require.Eventually(t, func() bool {
		return server.ConnCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool {
		return disconnects.Load() == 1 && server.ConnCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	t.Log("✅ ServerDisconnectCallback 测试通过")
}

// ============================================================================
//                              配置
// ============================================================================

// TestTransportConfig 测试传输配置验证
func TestTransportConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Equal(t, 7777, cfg.Port)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("EphemeralPort", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Port = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("InvalidPort", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("InvalidPingInterval", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.PingInterval = 0
		assert.Error(t, cfg.Validate())
	})

	t.Log("✅ TransportConfig 测试通过")
}
