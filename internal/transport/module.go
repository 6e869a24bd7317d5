package transport

import (
	"go.uber.org/fx"

	"github.com/SocketCluster/agc-state/config"
)

// Module 返回传输层 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(
			ConfigFromUnified,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigFromUnified 从统一配置创建传输配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Port:             cfg.Server.Port,
		HandshakeTimeout: cfg.Server.HandshakeTimeout.Duration(),
		InvokeTimeout:    cfg.Server.InvokeTimeout.Duration(),
		PingInterval:     cfg.Server.PingInterval.Duration(),
		WriteTimeout:     cfg.Server.WriteTimeout.Duration(),
		MaxMessageSize:   cfg.Server.MaxMessageSize,
	}
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, server *Server) {
	lc.Append(fx.Hook{
		OnStart: server.Start,
		OnStop:  server.Stop,
	})
}
