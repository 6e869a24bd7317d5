// Package app 提供 agc-state 应用编排层
//
// app 包负责：
// - fx 模块组装
// - 依赖注入协调
// - 生命周期管理
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/SocketCluster/agc-state/config"
	"github.com/SocketCluster/agc-state/internal/coordinator"
	"github.com/SocketCluster/agc-state/internal/introspect"
	"github.com/SocketCluster/agc-state/internal/metrics"
	"github.com/SocketCluster/agc-state/internal/transport"
	"github.com/SocketCluster/agc-state/pkg/lib/log"
)

var logger = log.Logger("app/bootstrap")

// lifecycleTimeout fx 生命周期钩子的启动/停止时限
const lifecycleTimeout = 30 * time.Second

// Bootstrap 应用引导程序
//
// Bootstrap 负责：
// - 校验配置并初始化日志
// - 组装 fx 模块
// - 管理应用生命周期
type Bootstrap struct {
	config *config.Config
	fxApp  *fx.App

	server *transport.Server
	coord  *coordinator.Coordinator
}

// NewBootstrap 创建引导程序
func NewBootstrap(cfg *config.Config) *Bootstrap {
	return &Bootstrap{config: cfg}
}

// Build 组装应用（不启动）
func (b *Bootstrap) Build() error {
	if b.config == nil {
		b.config = config.NewConfig()
	}
	if err := b.config.Validate(); err != nil {
		return fmt.Errorf("校验配置失败: %w", err)
	}

	// 日志必须在所有模块初始化之前配置
	log.Setup(os.Stderr, b.config.Log.Verbosity, b.config.Log.Format)

	b.fxApp = fx.New(
		fx.Options(b.modules()...),
		fx.Populate(&b.server, &b.coord),
		// 禁用 Fx 自身的日志输出（避免干扰服务日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)
	if err := b.fxApp.Err(); err != nil {
		return fmt.Errorf("组装模块失败: %w", err)
	}
	return nil
}

// Start 构建并启动应用
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.fxApp == nil {
		if err := b.Build(); err != nil {
			return err
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, lifecycleTimeout)
	defer cancel()

	if err := b.fxApp.Start(startCtx); err != nil {
		return fmt.Errorf("启动应用失败: %w", err)
	}

	logger.Info("状态服务器已启动",
		"addr", b.server.Addr(),
		"startup_delay", b.config.Cluster.StartupDelay.String())
	return nil
}

// Stop 停止应用
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.fxApp == nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, lifecycleTimeout)
	defer cancel()

	return b.fxApp.Stop(stopCtx)
}

// Run 启动应用并阻塞，直至收到退出信号或上下文取消
func (b *Bootstrap) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}

	select {
	case sig := <-b.fxApp.Done():
		logger.Info("收到退出信号", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("上下文已取消")
	}

	return b.Stop(context.Background())
}

// Server 返回传输服务器，应用构建后可用
func (b *Bootstrap) Server() *transport.Server {
	return b.server
}

// Coordinator 返回协调器，应用构建后可用
func (b *Bootstrap) Coordinator() *coordinator.Coordinator {
	return b.coord
}

// modules 组装所有 fx 模块
//
// coordinator 在 transport 之前列出：fx 按注册反序执行 OnStop，
// 传输层先停、协调器后关，断开回调不会落在已关闭的协调器上。
func (b *Bootstrap) modules() []fx.Option {
	return []fx.Option{
		// 配置与时钟
		fx.Supply(b.config),
		fx.Provide(func() clock.Clock { return clock.New() }),

		// 指标
		metrics.Module,

		// 协调器（核心）
		coordinator.Module(),

		// 传输层
		transport.Module(),

		// 自省服务
		introspect.Module(),
	}
}
