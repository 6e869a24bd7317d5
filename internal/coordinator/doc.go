// Package coordinator 实现集群成员协调器
//
// # 模块概述
//
// coordinator 是状态服务器的核心：维护"当前可达的 broker 集合"
// 这一权威视图，并在集合变化时把它推送给所有 worker。
//
// 核心职责：
//   - 维护 broker / worker 成员注册表（唯一事实来源）
//   - 防抖合并成员变更风暴，避免广播风暴
//   - 可靠广播：每个 worker 独立投递、失败重试、断开放弃
//   - 握手准入：共享密钥认证 + 主版本兼容性检查
//   - 启动宽限期：就绪前拒绝 worker 加入
//
// # 架构设计
//
//	                ┌────────────────────────────────┐
//	连接层事件 ───→ │          Coordinator           │
//	(join/leave/    ├────────────────────────────────┤
//	 disconnect)    │  registry.Store      成员注册表 │
//	                │  debounce.Scheduler  防抖调度器 │
//	                │  broadcast.Broadcaster  广播器  │
//	                │  gate.ReadinessGate  启动门卫   │
//	                │  netaddr.Resolver    地址解析   │
//	                └───────────────┬────────────────┘
//	                                │ brokerSetChange
//	                    ┌───────────┼───────────┐
//	                    ↓           ↓           ↓
//	                 worker      worker      worker
//
// 控制流：broker 相关事件更新注册表并布防定时器；定时器到期
// 后取快照交给广播器扇出给所有 worker。worker 加入则同步获得
// 当前快照，不等待防抖延迟。
//
// # 时序语义
//
//   - scale-out（broker 加入）与 scale-back（broker 离开）各有
//     独立的防抖延迟，离开的延迟通常更短
//   - 两种原因共享同一个定时器槽，最后一次事件的延迟总是生效
//   - 投递失败按固定间隔无限重试，目标连接关闭即放弃
//
// # 线程安全
//
// 所有公开方法都是线程安全的，连接层事件可以并发调用。
package coordinator
