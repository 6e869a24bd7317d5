package agcstate

import (
	"context"

	"github.com/SocketCluster/agc-state/config"
	"github.com/SocketCluster/agc-state/internal/app"
	"github.com/SocketCluster/agc-state/pkg/types"
	"github.com/SocketCluster/agc-state/pkg/version"
)

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前发布版本
//
// 握手兼容性检查以该版本的主版本号为准。
const Version = version.Version

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	return version.Info()
}

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

// 常用类型的别名，使用根包即可完成大多数交互。
type (
	// Config 完整配置结构
	Config = config.Config

	// ClusterState 集群状态快照
	ClusterState = types.ClusterState

	// Instance 集群成员记录
	Instance = types.Instance
)

// ════════════════════════════════════════════════════════════════════════════
//                              Server 门面
// ════════════════════════════════════════════════════════════════════════════

// Server 是状态服务器的门面
//
// 包装应用编排层，暴露生命周期与只读查询。写路径只存在于
// 集群协议本身：成员关系仅由连入的 broker/worker 改变。
type Server struct {
	bootstrap *app.Bootstrap
}

// New 按选项构建状态服务器（不启动）
func New(opts ...Option) (*Server, error) {
	cfg, err := applyOptions(opts...)
	if err != nil {
		return nil, err
	}

	b := app.NewBootstrap(cfg)
	if err := b.Build(); err != nil {
		return nil, err
	}
	return &Server{bootstrap: b}, nil
}

// Start 构建并启动状态服务器
//
// 等价于 New() 加 (*Server).Start()。
//
// 示例：
//
//	server, err := agcstate.Start(ctx,
//	    agcstate.WithPort(7777),
//	)
func Start(ctx context.Context, opts ...Option) (*Server, error) {
	srv, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}

// Run 构建并启动状态服务器，阻塞直至退出信号或 ctx 取消
func Run(ctx context.Context, opts ...Option) error {
	srv, err := New(opts...)
	if err != nil {
		return err
	}
	return srv.bootstrap.Run(ctx)
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动服务器
func (s *Server) Start(ctx context.Context) error {
	return s.bootstrap.Start(ctx)
}

// Stop 优雅停止服务器
//
// 先关闭监听与全部集群连接，再停止协调器。
func (s *Server) Stop(ctx context.Context) error {
	return s.bootstrap.Stop(ctx)
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询操作
// ════════════════════════════════════════════════════════════════════════════

// Addr 返回实际监听地址，服务器启动后可用
//
// 以端口 0 启动时可据此获得系统分配的端口。
func (s *Server) Addr() string {
	return s.bootstrap.Server().Addr()
}

// Ready 报告启动宽限期是否已结束
func (s *Server) Ready() bool {
	return s.bootstrap.Coordinator().Ready()
}

// Snapshot 返回当前集群状态快照
func (s *Server) Snapshot() ClusterState {
	return s.bootstrap.Coordinator().Snapshot()
}
