// Package protocol 定义 agc-state 的线上协议
//
// 包含过程名、事件名、握手查询参数、JSON 帧结构以及
// 跨越网络边界传递的类型化错误。broker 与 worker 实例
// 通过这些约定与状态服务器交互。
package protocol

// ============================================================================
//                              过程与事件
// ============================================================================

// 入站过程（实例 -> 状态服务器）
const (
	// ProcBrokerJoin broker 加入集群
	ProcBrokerJoin = "brokerJoin"

	// ProcBrokerLeave broker 主动离开集群
	ProcBrokerLeave = "brokerLeave"

	// ProcWorkerJoin worker 加入集群，同步返回当前集群状态
	ProcWorkerJoin = "workerJoin"

	// ProcWorkerLeave worker 主动离开集群
	ProcWorkerLeave = "workerLeave"
)

// 出站事件（状态服务器 -> worker）
const (
	// EventBrokerSetChange broker 集合变更通知，携带集群状态快照
	EventBrokerSetChange = "brokerSetChange"
)

// ============================================================================
//                              握手查询参数
// ============================================================================

// 连接升级 URL 上的查询参数
const (
	// QueryAuthKey 共享密钥
	QueryAuthKey = "authKey"

	// QueryVersion 远端实例上报的语义化版本
	QueryVersion = "version"

	// QueryInstanceType 远端实例角色（broker | worker）
	QueryInstanceType = "instanceType"

	// QueryInstanceID 远端实例的逻辑标识
	QueryInstanceID = "instanceId"
)
