package config

// IntrospectConfig 自省服务配置
//
// 自省服务在独立监听地址上暴露 /health、/metrics 与
// /debug/cluster，供运维诊断使用，与集群协议端口隔离。
type IntrospectConfig struct {
	// EnableIntrospect 启用自省服务
	EnableIntrospect bool `json:"enableIntrospect"`

	// IntrospectAddr 自省服务监听地址
	// 默认 "127.0.0.1:6060"
	IntrospectAddr string `json:"introspectAddr"`
}

// DefaultIntrospectConfig 返回默认自省配置
func DefaultIntrospectConfig() IntrospectConfig {
	return IntrospectConfig{
		EnableIntrospect: false, // 默认禁用
		IntrospectAddr:   "127.0.0.1:6060",
	}
}
