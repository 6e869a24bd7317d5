// Package app 的端到端测试
//
// 通过真实的 WebSocket 客户端验证完整装配后的应用行为：
//   - 集群编排（broker 加入/断开触发 worker 推送）
//   - worker 加入时的同步快照
//   - 并发 worker 加入与断开清理
//   - 握手认证与版本拒绝
//   - 启动宽限期
//   - 明文健康检查与配置校验
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SocketCluster/agc-state/config"
	"github.com/SocketCluster/agc-state/pkg/protocol"
	"github.com/SocketCluster/agc-state/pkg/types"
	"github.com/SocketCluster/agc-state/pkg/version"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// testConfig 构造端口随机、时序压缩的测试配置
func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Server.Port = 0
	cfg.Cluster.RetryDelay = config.Duration(100 * time.Millisecond)
	cfg.Cluster.ScaleOutDelay = config.Duration(150 * time.Millisecond)
	cfg.Cluster.ScaleBackDelay = config.Duration(80 * time.Millisecond)
	cfg.Cluster.StartupDelay = 0
	cfg.Log.Verbosity = 0
	return cfg
}

// startApp 启动完整应用并返回实际监听地址
func startApp(t *testing.T, cfg *config.Config) (*Bootstrap, string) {
	t.Helper()

	b := NewBootstrap(cfg)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, b.Stop(context.Background()))
	})

	_, port, err := net.SplitHostPort(b.Server().Addr())
	require.NoError(t, err)
	return b, "127.0.0.1:" + port
}

// handshakeParams 构造一组可通过校验的握手查询参数
func handshakeParams(instanceType string) url.Values {
	params := url.Values{}
	params.Set(protocol.QueryInstanceType, instanceType)
	params.Set(protocol.QueryVersion, version.Version)
	return params
}

// clusterClient 模拟单个 broker 或 worker 实例的最小客户端
type clusterClient struct {
	t    *testing.T
	conn *websocket.Conn
	cid  uint64
}

// dialInstance 以给定握手参数建立 WebSocket 连接
//
// 握手被拒绝时返回原始 HTTP 响应供断言状态码与响应体。
func dialInstance(t *testing.T, addr string, params url.Values) (*clusterClient, *http.Response, error) {
	t.Helper()

	u := url.URL{Scheme: "ws", Host: addr, Path: "/", RawQuery: params.Encode()}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, resp, err
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &clusterClient{t: t, conn: conn}, resp, nil
}

// invoke 发起命名调用并等待对应的应答帧
func (c *clusterClient) invoke(event string, payload any) protocol.ReplyFrame {
	c.t.Helper()

	c.cid++
	frame := protocol.CallFrame{Event: event, CID: c.cid}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(c.t, err)
		frame.Data = data
	}
	require.NoError(c.t, c.conn.WriteJSON(frame))

	var reply protocol.ReplyFrame
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(c.t, c.conn.ReadJSON(&reply))
	require.Equal(c.t, c.cid, reply.RID, "应答编号必须与请求对应")
	return reply
}

// awaitBrokerSet 等待下一条 brokerSetChange 推送并回执确认
func (c *clusterClient) awaitBrokerSet(timeout time.Duration) types.ClusterState {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(timeout)))
	var frame protocol.CallFrame
	require.NoError(c.t, c.conn.ReadJSON(&frame))
	require.Equal(c.t, protocol.EventBrokerSetChange, frame.Event)

	var state types.ClusterState
	require.NoError(c.t, json.Unmarshal(frame.Data, &state))

	// 未回执时服务端会按固定间隔重发
	require.NoError(c.t, c.conn.WriteJSON(protocol.ReplyFrame{RID: frame.CID}))
	return state
}

// ============================================================================
//                              测试场景 1: 集群编排
// ============================================================================

// TestAppClusterOrchestration 测试完整的集群编排闭环
//
// 场景：worker 先加入，broker 随后加入又异常断开
// 预期：worker 先收到包含该 broker 的推送，再收到空集合推送
func TestAppClusterOrchestration(t *testing.T) {
	_, addr := startApp(t, testConfig())

	worker, _, err := dialInstance(t, addr, handshakeParams("worker"))
	require.NoError(t, err)
	reply := worker.invoke(protocol.ProcWorkerJoin, protocol.JoinPayload{InstanceID: "w-1"})
	require.Nil(t, reply.Error)

	var state types.ClusterState
	require.NoError(t, json.Unmarshal(reply.Data, &state))
	assert.Empty(t, state.BrokerURIs, "尚无 broker 时快照应为空")

	broker, _, err := dialInstance(t, addr, handshakeParams("broker"))
	require.NoError(t, err)
	reply = broker.invoke(protocol.ProcBrokerJoin, protocol.JoinPayload{
		InstanceID:   "b-1",
		InstanceIP:   "10.9.9.1",
		InstancePort: 9000,
	})
	require.Nil(t, reply.Error)

	// scale-out 防抖窗口过后推送到达
	pushed := worker.awaitBrokerSet(2 * time.Second)
	assert.Equal(t, []string{"ws://10.9.9.1:9000"}, pushed.BrokerURIs)
	assert.NotZero(t, pushed.Time)

	// broker 异常断开，scale-back 窗口过后推送空集合
	require.NoError(t, broker.conn.Close())
	pushed = worker.awaitBrokerSet(2 * time.Second)
	assert.Empty(t, pushed.BrokerURIs)

	t.Log("✅ 集群编排端到端测试通过")
}

// ============================================================================
//                              测试场景 2: 同步快照
// ============================================================================

// TestAppWorkerSyncSnapshot 测试 worker 加入时的同步快照
//
// 场景：broker 已在集群中，worker 随后加入
// 预期：加入应答立即包含当前 broker 集合，无需等待防抖广播；
// 随后的定时广播同样覆盖该 worker
func TestAppWorkerSyncSnapshot(t *testing.T) {
	_, addr := startApp(t, testConfig())

	broker, _, err := dialInstance(t, addr, handshakeParams("broker"))
	require.NoError(t, err)
	reply := broker.invoke(protocol.ProcBrokerJoin, protocol.JoinPayload{
		InstanceID:     "b-1",
		InstanceIP:     "10.9.9.2",
		InstancePort:   8000,
		InstanceSecure: true,
	})
	require.Nil(t, reply.Error)

	worker, _, err := dialInstance(t, addr, handshakeParams("worker"))
	require.NoError(t, err)
	reply = worker.invoke(protocol.ProcWorkerJoin, protocol.JoinPayload{InstanceID: "w-1"})
	require.Nil(t, reply.Error)

	var state types.ClusterState
	require.NoError(t, json.Unmarshal(reply.Data, &state))
	assert.Equal(t, []string{"wss://10.9.9.2:8000"}, state.BrokerURIs, "加入应答应包含当前快照")

	pushed := worker.awaitBrokerSet(2 * time.Second)
	assert.Equal(t, state.BrokerURIs, pushed.BrokerURIs)

	t.Log("✅ 同步快照测试通过")
}

// ============================================================================
//                              测试场景 3: 并发加入
// ============================================================================

// TestAppConcurrentWorkerJoin 测试多个 worker 并发加入
//
// 场景：5 个 worker 同时建连并加入，随后全部断开
// 预期：每个 worker 都拿到一致的快照；断开后成员计数归零
func TestAppConcurrentWorkerJoin(t *testing.T) {
	app, addr := startApp(t, testConfig())

	broker, _, err := dialInstance(t, addr, handshakeParams("broker"))
	require.NoError(t, err)
	reply := broker.invoke(protocol.ProcBrokerJoin, protocol.JoinPayload{
		InstanceID:   "b-1",
		InstanceIP:   "10.9.9.3",
		InstancePort: 7000,
	})
	require.Nil(t, reply.Error)

	const workerCount = 5
	var joined atomic.Int32
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < workerCount; i++ {
		id := fmt.Sprintf("w-%d", i)
		g.Go(func() error {
			u := url.URL{Scheme: "ws", Host: addr, Path: "/", RawQuery: handshakeParams("worker").Encode()}
			conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			data, err := json.Marshal(protocol.JoinPayload{InstanceID: id})
			if err != nil {
				return err
			}
			if err := conn.WriteJSON(protocol.CallFrame{Event: protocol.ProcWorkerJoin, CID: 1, Data: data}); err != nil {
				return err
			}

			_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			var rep protocol.ReplyFrame
			if err := conn.ReadJSON(&rep); err != nil {
				return err
			}
			if rep.Error != nil {
				return rep.Error
			}

			var state types.ClusterState
			if err := json.Unmarshal(rep.Data, &state); err != nil {
				return err
			}
			if len(state.BrokerURIs) != 1 {
				return fmt.Errorf("unexpected broker set: %v", state.BrokerURIs)
			}
			joined.Add(1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, workerCount, joined.Load())

	// 所有 worker 连接已随协程退出关闭，断开处理应清空成员
	require.Eventually(t, func() bool {
		return app.Coordinator().GetStats().Workers == 0
	}, 2*time.Second, 20*time.Millisecond, "断开的 worker 应被移除")

	t.Log("✅ 并发加入测试通过")
}

// ============================================================================
//                              测试场景 4: 握手拒绝
// ============================================================================

// TestAppHandshakeRejection 测试握手层的准入控制
//
// 场景：配置共享密钥后分别以缺失密钥、过时版本、合法参数建连
// 预期：前两者在升级前被拒绝并返回对应状态码，后者正常完成调用
func TestAppHandshakeRejection(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AuthKey = "cluster-secret"
	_, addr := startApp(t, cfg)

	t.Run("MissingAuthKey", func(t *testing.T) {
		_, resp, err := dialInstance(t, addr, handshakeParams("worker"))
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var perr protocol.Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&perr))
		assert.Equal(t, protocol.ErrNameAuthentication, perr.Name)
	})

	t.Run("ObsoleteVersion", func(t *testing.T) {
		params := handshakeParams("worker")
		params.Set(protocol.QueryAuthKey, "cluster-secret")
		params.Set(protocol.QueryVersion, "1.9.3")
		_, resp, err := dialInstance(t, addr, params)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	})

	t.Run("Accepted", func(t *testing.T) {
		params := handshakeParams("broker")
		params.Set(protocol.QueryAuthKey, "cluster-secret")
		client, _, err := dialInstance(t, addr, params)
		require.NoError(t, err)

		reply := client.invoke(protocol.ProcBrokerJoin, protocol.JoinPayload{InstanceID: "b-1"})
		assert.Nil(t, reply.Error)
	})

	t.Log("✅ 握手拒绝测试通过")
}

// ============================================================================
//                              测试场景 5: 启动宽限期
// ============================================================================

// TestAppStartupGrace 测试启动宽限期内的 worker 准入
//
// 场景：配置 300ms 启动宽限期，worker 启动后立即加入
// 预期：首次加入被拒绝且连接保持打开，宽限期过后同一连接重试成功
func TestAppStartupGrace(t *testing.T) {
	cfg := testConfig()
	cfg.Cluster.StartupDelay = config.Duration(300 * time.Millisecond)
	_, addr := startApp(t, cfg)

	worker, _, err := dialInstance(t, addr, handshakeParams("worker"))
	require.NoError(t, err)

	reply := worker.invoke(protocol.ProcWorkerJoin, protocol.JoinPayload{InstanceID: "w-1"})
	require.NotNil(t, reply.Error)
	assert.True(t, protocol.IsErrorNamed(reply.Error, protocol.ErrNameNotReady))

	require.Eventually(t, func() bool {
		r := worker.invoke(protocol.ProcWorkerJoin, protocol.JoinPayload{InstanceID: "w-1"})
		return r.Error == nil
	}, 2*time.Second, 100*time.Millisecond, "宽限期过后重试应成功")

	t.Log("✅ 启动宽限期测试通过")
}

// ============================================================================
//                              测试场景 6: 探活与配置
// ============================================================================

// TestAppHealthCheck 测试同端口的明文健康检查
//
// 场景：对 WebSocket 监听端口发起普通 HTTP GET /health-check
// 预期：无需升级握手即返回 200
func TestAppHealthCheck(t *testing.T) {
	_, addr := startApp(t, testConfig())

	resp, err := http.Get("http://" + addr + "/health-check")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Log("✅ 健康检查测试通过")
}

// TestAppBuildInvalidConfig 测试非法配置下的构建失败
//
// 场景：端口为负数
// 预期：Build 返回校验错误，应用不会启动
func TestAppBuildInvalidConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Server.Port = -1

	b := NewBootstrap(cfg)
	err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")

	t.Log("✅ 配置校验测试通过")
}
