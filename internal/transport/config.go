package transport

import (
	"errors"
	"time"
)

// Config 传输服务器配置
type Config struct {
	// Port 监听端口，0 表示由系统分配（测试用）
	Port int

	// HandshakeTimeout WebSocket 升级握手超时
	HandshakeTimeout time.Duration

	// InvokeTimeout 出站调用的应答超时
	InvokeTimeout time.Duration

	// PingInterval 保活 ping 间隔
	PingInterval time.Duration

	// WriteTimeout 单帧写超时
	WriteTimeout time.Duration

	// MaxMessageSize 单条入站消息的字节上限
	MaxMessageSize int64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Port:             7777,
		HandshakeTimeout: 10 * time.Second,
		InvokeTimeout:    10 * time.Second,
		PingInterval:     25 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   1 << 20,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
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
