package config

import (
	"errors"
	"time"
)

// ServerConfig 状态服务器监听与连接配置
//
// 同一个监听端口同时承载 WebSocket 升级请求和明文
// GET /health-check 探活请求。
type ServerConfig struct {
	// Port 监听端口，0 表示由系统分配（测试用）
	Port int `json:"port"`

	// AuthKey 共享连接密钥
	// 为空时禁用认证检查；非空时握手查询参数 authKey 必须完全匹配
	AuthKey string `json:"authKey,omitempty"`

	// ForwardedForHeader 受信任的转发头名称
	// 为空时禁用；非空时加入载荷未携带 instanceIp 的连接
	// 取该头部的第一个逗号分隔值作为实例地址
	ForwardedForHeader string `json:"forwardedForHeader,omitempty"`

	// HandshakeTimeout WebSocket 升级握手超时
	HandshakeTimeout Duration `json:"handshakeTimeout"`

	// InvokeTimeout 出站调用的应答超时
	InvokeTimeout Duration `json:"invokeTimeout"`

	// PingInterval 连接保活 ping 间隔
	PingInterval Duration `json:"pingInterval"`

	// WriteTimeout 单帧写超时
	WriteTimeout Duration `json:"writeTimeout"`

	// MaxMessageSize 单条入站消息的字节上限
	MaxMessageSize int64 `json:"maxMessageSize"`
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:             7777,
		AuthKey:          "",
		HandshakeTimeout: Duration(10 * time.Second),
		InvokeTimeout:    Duration(10 * time.Second),
		PingInterval:     Duration(25 * time.Second),
		WriteTimeout:     Duration(10 * time.Second),
		MaxMessageSize:   1 << 20,
	}
}

// Validate 验证配置
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("port must be in range 0-65535")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("handshake timeout must be positive")
	}
	if c.InvokeTimeout <= 0 {
		return errors.New("invoke timeout must be positive")
	}
	if c.PingInterval <= 0 {
		return errors.New("ping interval must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("max message size must be positive")
	}
	return nil
}
