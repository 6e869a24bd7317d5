package coordinator

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/SocketCluster/agc-state/config"
	"github.com/SocketCluster/agc-state/internal/metrics"
	"github.com/SocketCluster/agc-state/internal/transport"
)

// Module 返回协调器 Fx 模块
func Module() fx.Option {
	return fx.Module("coordinator",
		fx.Provide(
			ConfigFromUnified,
			NewFromParams,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Params 协调器依赖参数
type Params struct {
	fx.In

	Config  *Config
	Clock   clock.Clock
	Metrics *metrics.Metrics
}

// ConfigFromUnified 从统一配置创建协调器配置
func ConfigFromUnified(cfg *config.Config) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}

	out.AuthKey = cfg.Server.AuthKey
	out.ForwardedForHeader = cfg.Server.ForwardedForHeader
	out.RetryDelay = cfg.Cluster.RetryDelay.Duration()
	out.ScaleOutDelay = cfg.Cluster.ScaleOutDelay.Duration()
	out.ScaleBackDelay = cfg.Cluster.ScaleBackDelay.Duration()
	out.StartupDelay = cfg.Cluster.StartupDelay.Duration()
	return out
}

// NewFromParams 从 Fx 参数创建协调器
func NewFromParams(p Params) (*Coordinator, error) {
	return New(p.Config, p.Clock, p.Metrics)
}

// registerLifecycle 挂载传输处理器并注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, c *Coordinator, server *transport.Server) {
	RegisterHandlers(server, c)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			c.Close()
			return nil
		},
	})
}
