package config

import (
	"errors"
)

// LogConfig 日志配置
type LogConfig struct {
	// Verbosity 日志详细程度
	// 0=静默 1=仅错误 2=错误+警告 3=全部
	Verbosity int `json:"verbosity"`

	// Format 输出格式（text | json）
	Format string `json:"format"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Verbosity: 3,
		Format:    "text",
	}
}

// Validate 验证配置
func (c *LogConfig) Validate() error {
	if c.Verbosity < 0 || c.Verbosity > 3 {
		return errors.New("verbosity must be in range 0-3")
	}
	if c.Format != "text" && c.Format != "json" {
		return errors.New("format must be \"text\" or \"json\"")
	}
	return nil
}
