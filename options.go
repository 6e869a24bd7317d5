package agcstate

import (
	"fmt"
	"time"

	"github.com/SocketCluster/agc-state/config"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
//
// 指针字段区分「未设置」与「显式设置为零值」，
// 显式设置的选项覆盖基线配置。
type options struct {
	// 基线配置（WithConfig）
	config *config.Config

	// 服务器配置
	port         *int
	authKey      *string
	forwardedFor *string

	// 集群时序配置
	retryDelay     *time.Duration
	scaleOutDelay  *time.Duration
	scaleBackDelay *time.Duration
	startupDelay   *time.Duration

	// 自省服务配置
	introspectAddr *string

	// 日志配置
	verbosity *int
	logFormat *string
}

// applyOptions 应用全部选项并产出校验过的配置
func applyOptions(opts ...Option) (*config.Config, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o.toConfig()
}

// toConfig 在基线配置之上应用显式覆盖
func (o *options) toConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if o.config != nil {
		// 浅拷贝，避免改写调用方持有的配置
		clone := *o.config
		cfg = &clone
	}

	if o.port != nil {
		cfg.Server.Port = *o.port
	}
	if o.authKey != nil {
		cfg.Server.AuthKey = *o.authKey
	}
	if o.forwardedFor != nil {
		cfg.Server.ForwardedForHeader = *o.forwardedFor
	}

	if o.retryDelay != nil {
		cfg.Cluster.RetryDelay = config.Duration(*o.retryDelay)
	}
	if o.scaleOutDelay != nil {
		cfg.Cluster.ScaleOutDelay = config.Duration(*o.scaleOutDelay)
	}
	if o.scaleBackDelay != nil {
		cfg.Cluster.ScaleBackDelay = config.Duration(*o.scaleBackDelay)
	}
	if o.startupDelay != nil {
		cfg.Cluster.StartupDelay = config.Duration(*o.startupDelay)
	}

	if o.introspectAddr != nil {
		cfg.Introspect.EnableIntrospect = *o.introspectAddr != ""
		cfg.Introspect.IntrospectAddr = *o.introspectAddr
	}

	if o.verbosity != nil {
		cfg.Log.Verbosity = *o.verbosity
	}
	if o.logFormat != nil {
		cfg.Log.Format = *o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              基线配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置结构作为基线
//
// 其余 WithXxx 选项在其之上覆盖，适合「配置文件 + 运行时覆盖」
// 的组合方式。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("agcstate: WithConfig called with nil config")
		}
		o.config = cfg
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              服务器选项
// ════════════════════════════════════════════════════════════════════════════

// WithPort 设置监听端口
//
// 端口 0 表示由系统分配（测试用）。
func WithPort(port int) Option {
	return func(o *options) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("agcstate: invalid port %d", port)
		}
		o.port = &port
		return nil
	}
}

// WithAuthKey 设置共享连接密钥
//
// 设置后握手查询参数 authKey 必须完全匹配；空字符串禁用认证。
func WithAuthKey(key string) Option {
	return func(o *options) error {
		o.authKey = &key
		return nil
	}
}

// WithForwardedForHeader 设置受信任的转发头名称
//
// 服务器部署在反向代理之后时，加入载荷未携带 instanceIp 的
// 连接会取该头部的第一个逗号分隔值作为实例地址。
func WithForwardedForHeader(name string) Option {
	return func(o *options) error {
		o.forwardedFor = &name
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              集群时序选项
// ════════════════════════════════════════════════════════════════════════════

// WithRetryDelay 设置广播投递失败后的重试间隔
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) error {
		o.retryDelay = &d
		return nil
	}
}

// WithScaleDelays 设置 broker 集合变化的防抖延迟
//
// scaleOut 对应 broker 加入，scaleBack 对应 broker 离开。
// 约定上 scaleBack 短于 scaleOut。
func WithScaleDelays(scaleOut, scaleBack time.Duration) Option {
	return func(o *options) error {
		o.scaleOutDelay = &scaleOut
		o.scaleBackDelay = &scaleBack
		return nil
	}
}

// WithStartupDelay 设置启动宽限期
//
// 宽限期内 worker 加入会被拒绝；0 表示启动即就绪。
func WithStartupDelay(d time.Duration) Option {
	return func(o *options) error {
		o.startupDelay = &d
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              运维选项
// ════════════════════════════════════════════════════════════════════════════

// WithIntrospect 在指定地址启用本地自省服务
//
// 自省服务暴露 /health、/metrics、/debug/cluster 与 pprof。
// 空地址表示禁用。
func WithIntrospect(addr string) Option {
	return func(o *options) error {
		o.introspectAddr = &addr
		return nil
	}
}

// WithLogVerbosity 设置日志详细程度（0-3）
func WithLogVerbosity(verbosity int) Option {
	return func(o *options) error {
		o.verbosity = &verbosity
		return nil
	}
}

// WithLogFormat 设置日志格式（text | json）
func WithLogFormat(format string) Option {
	return func(o *options) error {
		o.logFormat = &format
		return nil
	}
}
