package config

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"
)

// 环境变量名（历史运维接口，保持兼容）
const (
	EnvServerPort     = "AGC_STATE_SERVER_PORT"
	EnvAuthKey        = "AGC_AUTH_KEY"
	EnvForwardedFor   = "FORWARDED_FOR_HEADER"
	EnvRetryDelay     = "AGC_STATE_SERVER_RETRY_DELAY"
	EnvScaleOutDelay  = "AGC_STATE_SERVER_CLUSTER_SCALE_OUT_DELAY"
	EnvScaleBackDelay = "AGC_STATE_SERVER_CLUSTER_SCALE_BACK_DELAY"
	EnvStartupDelay   = "AGC_STATE_SERVER_STARTUP_DELAY"
	EnvInvokeTimeout  = "AGC_STATE_SERVER_INVOKE_TIMEOUT"
	EnvLogLevel       = "AGC_STATE_LOG_LEVEL"
	EnvLogFormat      = "AGC_STATE_LOG_FORMAT"
	EnvIntrospectAddr = "AGC_STATE_INTROSPECT_ADDR"
)

// FromEnv 从环境变量加载配置
//
// 未设置的变量保持默认值。时长变量接受裸整数（毫秒）
// 或 Go 时长字符串（如 "5s"）。所有解析错误会聚合后
// 一次性返回。
func FromEnv() (*Config, error) {
	cfg := NewConfig()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv 将已设置的环境变量覆盖到 cfg 上
//
// 仅做解析与赋值，不做整体校验，便于在配置文件之上叠加
// 环境变量后再统一校验。
func ApplyEnv(cfg *Config) error {
	var errs error

	if v := os.Getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: invalid port %q", EnvServerPort, v))
		} else {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv(EnvAuthKey); v != "" {
		cfg.Server.AuthKey = v
	}

	if v := os.Getenv(EnvForwardedFor); v != "" {
		cfg.Server.ForwardedForHeader = v
	}

	parseDelay := func(name string, dst *Duration) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		d, err := ParseDuration(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	parseDelay(EnvRetryDelay, &cfg.Cluster.RetryDelay)
	parseDelay(EnvScaleOutDelay, &cfg.Cluster.ScaleOutDelay)
	parseDelay(EnvScaleBackDelay, &cfg.Cluster.ScaleBackDelay)
	parseDelay(EnvStartupDelay, &cfg.Cluster.StartupDelay)
	parseDelay(EnvInvokeTimeout, &cfg.Server.InvokeTimeout)

	if v := os.Getenv(EnvLogLevel); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: invalid level %q", EnvLogLevel, v))
		} else {
			cfg.Log.Verbosity = level
		}
	}

	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv(EnvIntrospectAddr); v != "" {
		cfg.Introspect.EnableIntrospect = true
		cfg.Introspect.IntrospectAddr = v
	}

	return errs
}
