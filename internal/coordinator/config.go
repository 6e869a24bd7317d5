package coordinator

import (
	"fmt"
	"time"

	"github.com/SocketCluster/agc-state/pkg/version"
)

// Config 协调器配置
type Config struct {
	// AuthKey 共享连接密钥，为空时禁用认证检查
	AuthKey string

	// ForwardedForHeader 受信任的转发头名称，为空时禁用
	ForwardedForHeader string

	// RequiredMajor 接受的远端主版本号
	// 进程启动时固定，运行期间不再变化
	RequiredMajor int

	// RetryDelay 广播投递失败后的固定重试间隔
	RetryDelay time.Duration

	// ScaleOutDelay broker 加入后的防抖延迟
	ScaleOutDelay time.Duration

	// ScaleBackDelay broker 离开后的防抖延迟
	// 通常短于 ScaleOutDelay：离开的 broker 应尽快停止被公布
	ScaleBackDelay time.Duration

	// StartupDelay 启动宽限期，期间拒绝 worker 加入
	// 为 0 时立即就绪
	StartupDelay time.Duration

	// RejectionLogSize 握手拒绝日志的容量
	RejectionLogSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RequiredMajor:    version.Major(),
		RetryDelay:       2 * time.Second,
		ScaleOutDelay:    5 * time.Second,
		ScaleBackDelay:   time.Second,
		StartupDelay:     5 * time.Second,
		RejectionLogSize: 64,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.RequiredMajor < 0 {
		return fmt.Errorf("%w: RequiredMajor must not be negative", ErrInvalidConfig)
	}

	if c.RetryDelay <= 0 {
		return fmt.Errorf("%w: RetryDelay must be positive", ErrInvalidConfig)
	}

	if c.ScaleOutDelay < 0 {
		return fmt.Errorf("%w: ScaleOutDelay must not be negative", ErrInvalidConfig)
	}

	if c.ScaleBackDelay < 0 {
		return fmt.Errorf("%w: ScaleBackDelay must not be negative", ErrInvalidConfig)
	}

	if c.StartupDelay < 0 {
		return fmt.Errorf("%w: StartupDelay must not be negative", ErrInvalidConfig)
	}

	return nil
}

// Clone 克隆配置
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
