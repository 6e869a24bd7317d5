package introspect

import (
	"context"

	"go.uber.org/fx"

	"github.com/SocketCluster/agc-state/config"
	"github.com/SocketCluster/agc-state/internal/coordinator"
	"github.com/SocketCluster/agc-state/internal/metrics"
)

// Module 返回自省服务 Fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(
			NewFromParams,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Params 自省服务依赖参数
type Params struct {
	fx.In

	UnifiedCfg  *config.Config           `optional:"true"`
	Coordinator *coordinator.Coordinator `optional:"true"`
	Metrics     *metrics.Metrics         `optional:"true"`
}

// ConfigFromUnified 从统一配置创建自省服务配置
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil || !cfg.Introspect.EnableIntrospect {
		return nil // 禁用时返回 nil
	}
	addr := cfg.Introspect.IntrospectAddr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Config{
		Addr: addr,
	}
}

// NewFromParams 从参数创建自省服务
//
// 自省服务未启用时返回 nil，生命周期钩子据此跳过启动。
func NewFromParams(p Params) *Server {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if cfg == nil {
		return nil
	}

	if p.Coordinator != nil {
		cfg.Reporter = p.Coordinator
	}
	cfg.Metrics = p.Metrics

	return New(*cfg)
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return // 禁用时跳过
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Stop()
		},
	})
}
