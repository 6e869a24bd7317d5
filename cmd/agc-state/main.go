// Package main 提供 agc-state 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	agcstate "github.com/SocketCluster/agc-state"
	"github.com/SocketCluster/agc-state/config"
)

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
// 配置优先级（从高到低）：
//
//	命令行参数 > 环境变量 > JSON 配置文件 > 内置默认值
//
// 环境变量沿用历史运维接口的命名（AGC_STATE_SERVER_PORT 等），
// 既有部署脚本无需改动即可迁移。
var (
	// ─────────────────────────────────────────────────────────────────────
	// 运行时参数（快速指定）
	// ─────────────────────────────────────────────────────────────────────
	port       = flag.Int("port", 0, "监听端口")
	configFile = flag.String("config", "", "JSON 配置文件路径")
	authKey    = flag.String("auth-key", "", "共享连接密钥（空 = 不认证）")
	introspect = flag.String("introspect", "", "自省服务监听地址（如 127.0.0.1:6060，空 = 禁用）")

	// ─────────────────────────────────────────────────────────────────────
	// 日志参数
	// ─────────────────────────────────────────────────────────────────────
	verbosity = flag.Int("verbosity", -1, "日志详细程度 0-3（-1 = 使用配置值）")
	logFormat = flag.String("log-format", "", "日志格式 text|json（空 = 使用配置值）")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(agcstate.VersionInfo())
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("📦 %s\n", agcstate.VersionInfo())

	server, err := agcstate.Start(ctx, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	fmt.Printf("状态服务器已启动，监听 %s，按 Ctrl+C 退出\n", server.Addr())
	waitForSignal()

	fmt.Println("\n正在关闭状态服务器...")
	return server.Stop(context.Background())
}

// buildOptions 按优先级组装启动选项
//
// 配置文件与环境变量合成基线配置，显式设置的命令行参数
// 转换为覆盖选项。
func buildOptions() ([]agcstate.Option, error) {
	var cfg *config.Config

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		cfg, err = config.FromJSON(data)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.NewConfig()
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	opts := []agcstate.Option{agcstate.WithConfig(cfg)}

	if isFlagSet("port") {
		opts = append(opts, agcstate.WithPort(*port))
	}
	if isFlagSet("auth-key") {
		opts = append(opts, agcstate.WithAuthKey(*authKey))
	}
	if isFlagSet("introspect") {
		opts = append(opts, agcstate.WithIntrospect(*introspect))
	}
	if isFlagSet("verbosity") && *verbosity >= 0 {
		opts = append(opts, agcstate.WithLogVerbosity(*verbosity))
	}
	if isFlagSet("log-format") && *logFormat != "" {
		opts = append(opts, agcstate.WithLogFormat(*logFormat))
	}

	return opts, nil
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// waitForSignal 等待退出信号
func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("agc-state - 两层集群的成员协调状态服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  agc-state [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  AGC_STATE_SERVER_PORT                       监听端口")
	fmt.Println("  AGC_AUTH_KEY                                共享连接密钥")
	fmt.Println("  FORWARDED_FOR_HEADER                        受信任的转发头名称")
	fmt.Println("  AGC_STATE_SERVER_RETRY_DELAY                广播重试间隔（毫秒或时长字符串）")
	fmt.Println("  AGC_STATE_SERVER_CLUSTER_SCALE_OUT_DELAY    broker 加入防抖延迟")
	fmt.Println("  AGC_STATE_SERVER_CLUSTER_SCALE_BACK_DELAY   broker 离开防抖延迟")
	fmt.Println("  AGC_STATE_SERVER_STARTUP_DELAY              启动宽限期")
	fmt.Println("  AGC_STATE_SERVER_INVOKE_TIMEOUT             出站调用应答超时")
	fmt.Println("  AGC_STATE_LOG_LEVEL                         日志详细程度 0-3")
	fmt.Println("  AGC_STATE_LOG_FORMAT                        日志格式 text|json")
	fmt.Println("  AGC_STATE_INTROSPECT_ADDR                   自省服务监听地址")
	fmt.Println()
	fmt.Println("使用示例:")
	fmt.Println()
	fmt.Println("  # 使用默认配置启动（端口 7777）")
	fmt.Println("  agc-state")
	fmt.Println()
	fmt.Println("  # 指定端口与连接密钥")
	fmt.Println("  agc-state -port 8888 -auth-key cluster-secret")
	fmt.Println()
	fmt.Println("  # 使用配置文件（推荐用于生产环境）")
	fmt.Println("  agc-state -config state.json")
	fmt.Println()
	fmt.Println("  # 开启本地自省服务（pprof + 指标 + 集群状态）")
	fmt.Println("  agc-state -introspect 127.0.0.1:6060")
	fmt.Println()
	fmt.Println("配置文件示例 (state.json):")
	fmt.Println()
	fmt.Println(`  {`)
	fmt.Println(`    "server": {`)
	fmt.Println(`      "port": 7777,`)
	fmt.Println(`      "authKey": "cluster-secret",`)
	fmt.Println(`      "forwardedForHeader": "X-Forwarded-For"`)
	fmt.Println(`    },`)
	fmt.Println(`    "cluster": {`)
	fmt.Println(`      "scaleOutDelay": "5s",`)
	fmt.Println(`      "scaleBackDelay": 1000,`)
	fmt.Println(`      "startupDelay": "5s"`)
	fmt.Println(`    },`)
	fmt.Println(`    "introspect": {`)
	fmt.Println(`      "enableIntrospect": true,`)
	fmt.Println(`      "introspectAddr": "127.0.0.1:6060"`)
	fmt.Println(`    }`)
	fmt.Println(`  }`)
}
