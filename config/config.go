// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从环境变量加载（历史运维接口）和从 JSON 加载
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Cluster.ScaleOutDelay = config.Duration(10 * time.Second)
//
//	// 从环境变量加载
//	cfg, err := config.FromEnv()
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"
)

// Config 是 agc-state 的完整配置结构
//
// 该结构体嵌入了所有组件的子配置，提供统一的配置接口。
// 配置按照功能模块组织：
//   - Server: 监听与连接参数
//   - Cluster: 防抖、重试与启动宽限期时序
//   - Log: 日志详细程度与格式
//   - Introspect: 运维自省服务
type Config struct {
	// Server 服务器配置
	Server ServerConfig `json:"server"`

	// Cluster 集群协调配置
	Cluster ClusterConfig `json:"cluster"`

	// Log 日志配置
	Log LogConfig `json:"log"`

	// Introspect 自省服务配置
	Introspect IntrospectConfig `json:"introspect"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
func NewConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Cluster:    DefaultClusterConfig(),
		Log:        DefaultLogConfig(),
		Introspect: DefaultIntrospectConfig(),
	}
}

// Validate 验证整个配置的有效性
//
// 逐个验证子配置并聚合所有错误，一次性暴露全部问题。
func (c *Config) Validate() error {
	var err error
	if e := c.Server.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("server: %w", e))
	}
	if e := c.Cluster.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("cluster: %w", e))
	}
	if e := c.Log.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("log: %w", e))
	}
	return err
}

// FromJSON 从 JSON 数据加载配置
//
// 未出现的字段保持默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToJSON 序列化配置为 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
