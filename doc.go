// Package agcstate 提供两层集群的成员协调状态服务器
//
// agc-state 是集群的汇合点：broker 实例连入并公布自己的网络地址，
// worker 实例连入并持续获得当前可用的 broker 地址列表。broker 集合
// 发生变化时，所有 worker 会在防抖窗口合并后收到一次推送。
//
// # 核心概念
//
//   - Broker: 对外公布网络地址的实例，加入即进入集群快照
//   - Worker: 消费 broker 地址列表的实例，通过同步应答与异步推送获取快照
//   - 防抖广播: broker 集合变化不立即扩散，scale-out/scale-back
//     各有独立延迟，连续变化合并为一次推送
//
// # 快速开始
//
//	import "github.com/SocketCluster/agc-state"
//
//	// 启动状态服务器
//	server, err := agcstate.Start(ctx,
//	    agcstate.WithPort(7777),
//	    agcstate.WithAuthKey("cluster-secret"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Stop(context.Background())
//
//	fmt.Println("listening on", server.Addr())
//
// # 架构
//
//	┌──────────┐  brokerJoin / brokerLeave   ┌─────────────────────────┐
//	│  broker  │ ──────────────────────────▶ │        agc-state        │
//	└──────────┘       (WebSocket)           │                         │
//	                                         │  registry ── debounce   │
//	┌──────────┐  workerJoin  ──────────────▶│      │          │       │
//	│  worker  │ ◀────────────────────────── │  snapshot   broadcast   │
//	└──────────┘  brokerSetChange（推送）     └─────────────────────────┘
//
// # 文件组织
//
//	agc-state/
//	├── agcstate.go           # Server 门面、Start/Run、版本信息
//	├── options.go            # WithXxx 配置选项
//	├── cmd/agc-state/        # 命令行入口
//	├── config/               # 统一配置（JSON/环境变量）
//	├── internal/app/         # fx 应用编排
//	├── internal/transport/   # WebSocket 服务器与帧协议
//	├── internal/coordinator/ # 集群协调（成员、防抖、广播）
//	├── internal/registry/    # 成员登记表
//	├── internal/broadcast/   # 带重试的推送投递
//	├── internal/debounce/    # 单槽位防抖定时器
//	├── internal/gate/        # 握手准入与启动宽限期
//	├── internal/netaddr/     # 实例地址解析
//	├── internal/metrics/     # Prometheus 指标
//	├── internal/introspect/  # 本地自省 HTTP 服务
//	└── pkg/                  # 对外协议与类型
//
// # 线程安全
//
// Server 的所有方法都可以并发调用。
package agcstate
