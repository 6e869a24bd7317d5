package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocketCluster/agc-state/internal/coordinator"
	"github.com/SocketCluster/agc-state/internal/gate"
	"github.com/SocketCluster/agc-state/internal/metrics"
	"github.com/SocketCluster/agc-state/pkg/protocol"
	"github.com/SocketCluster/agc-state/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// fakeReporter 模拟集群诊断数据源
type fakeReporter struct {
	ready bool
}

func (f *fakeReporter) Snapshot() types.ClusterState {
	return types.ClusterState{
		BrokerURIs: []string{"ws://10.0.0.1:8000"},
		Time:       1700000000000,
	}
}

func (f *fakeReporter) GetStats() coordinator.Stats {
	return coordinator.Stats{Brokers: 1, Workers: 2, Ready: f.ready}
}

func (f *fakeReporter) RecentRejections() []gate.Rejection {
	return []gate.Rejection{{
		RemoteAddr: "10.1.1.1:5000",
		Name:       protocol.ErrNameAuthentication,
		Message:    "Cannot connect without a valid authKey",
	}}
}

func (f *fakeReporter) Ready() bool { return f.ready }

// startIntrospect 启动测试用自省服务
func startIntrospect(t *testing.T, cfg Config) *Server {
	t.Helper()

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	server := New(cfg)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

// getJSON 请求端点并解码 JSON 响应
func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// ============================================================================
//                              诊断端点
// ============================================================================

// TestIntrospectCluster 测试集群诊断端点
//
// 场景：配置了诊断数据源的服务接收各诊断请求
// 预期：返回完整诊断、状态快照与拒绝日志
func TestIntrospectCluster(t *testing.T) {
	server := startIntrospect(t, Config{Reporter: &fakeReporter{ready: true}})
	base := "http://" + server.Addr()

	t.Run("FullDiagnostics", func(t *testing.T) {
		var response ClusterResponse
		code := getJSON(t, base+"/debug/cluster", &response)
		require.Equal(t, http.StatusOK, code)

		assert.Equal(t, []string{"ws://10.0.0.1:8000"}, response.State.BrokerURIs)
		assert.Equal(t, 1, response.Stats.Brokers)
		assert.Equal(t, 2, response.Stats.Workers)
		assert.Len(t, response.Rejections, 1)
		assert.NotEmpty(t, response.Version)
	})

	t.Run("StateOnly", func(t *testing.T) {
		var state types.ClusterState
		code := getJSON(t, base+"/debug/cluster/state", &state)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, int64(1700000000000), state.Time)
	})

	t.Run("Rejections", func(t *testing.T) {
		var rejections []gate.Rejection
		code := getJSON(t, base+"/debug/cluster/rejections", &rejections)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, rejections, 1)
		assert.Equal(t, protocol.ErrNameAuthentication, rejections[0].Name)
	})

	t.Run("Runtime", func(t *testing.T) {
		var info RuntimeInfo
		code := getJSON(t, base+"/debug/runtime", &info)
		require.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, info.GoVersion)
		assert.Positive(t, info.NumGoroutine)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		resp, err := http.Post(base+"/debug/cluster", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Log("✅ IntrospectCluster 测试通过")
}

// TestIntrospectNoReporter 测试无诊断数据源时的行为
func TestIntrospectNoReporter(t *testing.T) {
	server := startIntrospect(t, Config{})
	base := "http://" + server.Addr()

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, base+"/debug/cluster", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, base+"/debug/cluster/state", nil))

	var health HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, base+"/health", &health))
	assert.Equal(t, "degraded", health.Status)

	t.Log("✅ IntrospectNoReporter 测试通过")
}

// ============================================================================
//                              健康检查
// ============================================================================

// TestIntrospectHealth 测试健康检查状态
//
// 场景：启动宽限期内与就绪后
// 预期：分别报告 starting 与 ok
func TestIntrospectHealth(t *testing.T) {
	t.Run("Starting", func(t *testing.T) {
		server := startIntrospect(t, Config{Reporter: &fakeReporter{ready: false}})

		var health HealthResponse
		require.Equal(t, http.StatusOK, getJSON(t, "http://"+server.Addr()+"/health", &health))
		assert.Equal(t, "starting", health.Status)
	})

	t.Run("Ready", func(t *testing.T) {
		server := startIntrospect(t, Config{Reporter: &fakeReporter{ready: true}})

		var health HealthResponse
		require.Equal(t, http.StatusOK, getJSON(t, "http://"+server.Addr()+"/health", &health))
		assert.Equal(t, "ok", health.Status)
	})

	t.Log("✅ IntrospectHealth 测试通过")
}

// ============================================================================
//                              指标端点
// ============================================================================

// TestIntrospectMetrics 测试 Prometheus 指标端点
func TestIntrospectMetrics(t *testing.T) {
	m := metrics.New()
	m.SetMembership(3, 7)

	server := startIntrospect(t, Config{Metrics: m})

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "agc_state_brokers 3")
	assert.Contains(t, string(body), "agc_state_workers 7")

	t.Log("✅ IntrospectMetrics 测试通过")
}
