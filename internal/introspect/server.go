// Package introspect 提供本地自省 HTTP 服务
//
// 在独立的回环地址上暴露集群诊断、Prometheus 指标与 pprof
// 端点。服务默认关闭，仅在显式配置监听地址时启动；它面向
// 运维排障，不属于集群协议面。
package introspect

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SocketCluster/agc-state/internal/coordinator"
	"github.com/SocketCluster/agc-state/internal/gate"
	"github.com/SocketCluster/agc-state/internal/metrics"
	"github.com/SocketCluster/agc-state/pkg/lib/log"
	"github.com/SocketCluster/agc-state/pkg/types"
	"github.com/SocketCluster/agc-state/pkg/version"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// ============================================================================
//                              配置
// ============================================================================

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Reporter 可选的集群诊断数据源
	Reporter ClusterReporter

	// Metrics 可选的指标实例，提供 /metrics 端点
	Metrics *metrics.Metrics

	// CustomHandlers 自定义处理器
	CustomHandlers map[string]http.HandlerFunc
}

// ClusterReporter 集群诊断数据源
type ClusterReporter interface {
	// Snapshot 当前集群状态快照
	Snapshot() types.ClusterState

	// GetStats 协调器运行统计
	GetStats() coordinator.Stats

	// RecentRejections 最近的握手拒绝记录
	RecentRejections() []gate.Rejection

	// Ready 启动宽限期是否已结束
	Ready() bool
}

// ============================================================================
//                              Server
// ============================================================================

// Server 本地自省 HTTP 服务
type Server struct {
	config Config

	// HTTP 服务器
	server   *http.Server
	listener net.Listener

	// 状态
	running   bool
	startTime time.Time

	mu sync.Mutex
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	return &Server{
		config: cfg,
	}
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// 创建路由
	mux := http.NewServeMux()

	// 集群诊断端点
	mux.HandleFunc("/debug/cluster", s.handleCluster)
	mux.HandleFunc("/debug/cluster/state", s.handleState)
	mux.HandleFunc("/debug/cluster/rejections", s.handleRejections)
	mux.HandleFunc("/debug/runtime", s.handleRuntime)

	// Prometheus 指标端点
	if s.config.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(
			s.config.Metrics.Registry(),
			promhttp.HandlerOpts{}))
	}

	// pprof 端点
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 健康检查
	mux.HandleFunc("/health", s.handleHealth)

	// 自定义处理器
	for path, handler := range s.config.CustomHandlers {
		mux.HandleFunc(path, handler)
	}

	// 创建监听器
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	// 创建 HTTP 服务器
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 启动服务
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// ============================================================================
//                              响应结构
// ============================================================================

// ClusterResponse 完整集群诊断响应
type ClusterResponse struct {
	Timestamp  time.Time          `json:"timestamp"`
	Uptime     string             `json:"uptime"`
	Version    string             `json:"version"`
	State      types.ClusterState `json:"state"`
	Stats      coordinator.Stats  `json:"stats"`
	Rejections []gate.Rejection   `json:"rejections"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	MemSys       uint64 `json:"mem_sys"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// handleCluster 处理完整集群诊断请求
func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.config.Reporter == nil {
		http.Error(w, "Cluster info not available", http.StatusServiceUnavailable)
		return
	}

	response := ClusterResponse{
		Timestamp:  time.Now(),
		Uptime:     time.Since(s.startTime).String(),
		Version:    version.Version,
		State:      s.config.Reporter.Snapshot(),
		Stats:      s.config.Reporter.GetStats(),
		Rejections: s.config.Reporter.RecentRejections(),
	}

	s.writeJSON(w, response)
}

// handleState 处理集群状态快照请求
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.config.Reporter == nil {
		http.Error(w, "Cluster info not available", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, s.config.Reporter.Snapshot())
}

// handleRejections 处理握手拒绝日志请求
func (s *Server) handleRejections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.config.Reporter == nil {
		http.Error(w, "Cluster info not available", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, s.config.Reporter.RecentRejections())
}

// handleRuntime 处理运行时信息请求
func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.writeJSON(w, RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	})
}

// handleHealth 处理健康检查请求
//
// 启动宽限期内报告 starting，诊断数据源缺失时报告 degraded。
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
	}

	switch {
	case s.config.Reporter == nil:
		health.Status = "degraded"
	case !s.config.Reporter.Ready():
		health.Status = "starting"
	}

	s.writeJSON(w, health)
}

// ============================================================================
//                              辅助方法
// ============================================================================

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
