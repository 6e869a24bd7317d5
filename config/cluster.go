package config

import (
	"errors"
	"time"
)

// ClusterConfig 集群协调的时序配置
//
// 约定上 scale-back 短于 scale-out：broker 离开应尽快停止
// 对外公布，而新加入的 broker 给予更长的合并窗口以吸收
// 连续加入的风暴。
type ClusterConfig struct {
	// RetryDelay 广播投递失败后的固定重试间隔
	RetryDelay Duration `json:"retryDelay"`

	// ScaleOutDelay broker 加入后的防抖延迟
	ScaleOutDelay Duration `json:"scaleOutDelay"`

	// ScaleBackDelay broker 离开后的防抖延迟
	ScaleBackDelay Duration `json:"scaleBackDelay"`

	// StartupDelay 启动宽限期
	// 宽限期内 worker 加入会被拒绝，避免绑定到尚未收敛的 broker 集合；
	// 设为 0 表示启动即就绪
	StartupDelay Duration `json:"startupDelay"`
}

// DefaultClusterConfig 返回默认集群配置
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		RetryDelay:     Duration(2000 * time.Millisecond),
		ScaleOutDelay:  Duration(5000 * time.Millisecond),
		ScaleBackDelay: Duration(1000 * time.Millisecond),
		StartupDelay:   Duration(5000 * time.Millisecond),
	}
}

// Validate 验证配置
func (c *ClusterConfig) Validate() error {
	if c.RetryDelay <= 0 {
		return errors.New("retry delay must be positive")
	}
	if c.ScaleOutDelay < 0 {
		return errors.New("scale out delay must be non-negative")
	}
	if c.ScaleBackDelay < 0 {
		return errors.New("scale back delay must be non-negative")
	}
	if c.StartupDelay < 0 {
		return errors.New("startup delay must be non-negative")
	}
	return nil
}
