// Package types 定义 agc-state 的共享领域类型
//
// 这些类型在注册表、协调器、传输层与诊断接口之间传递，
// 不依赖任何内部包，保持零依赖以避免循环引用。
package types

import (
	"time"
)

// ============================================================================
//                              实例类型
// ============================================================================

// InstanceType 集群实例的角色
type InstanceType string

const (
	// InstanceTypeBroker broker 实例：对外公布自身网络地址
	InstanceTypeBroker InstanceType = "broker"

	// InstanceTypeWorker worker 实例：消费当前 broker 地址列表
	InstanceTypeWorker InstanceType = "worker"
)

// Valid 检查实例类型是否为已知角色
func (t InstanceType) Valid() bool {
	return t == InstanceTypeBroker || t == InstanceTypeWorker
}

// String 返回字符串表示
func (t InstanceType) String() string {
	return string(t)
}

// ============================================================================
//                              地址族
// ============================================================================

// IPFamily 实例地址的地址族
//
// 仅当加入载荷显式携带 instanceIp 时才会记录；
// 地址来自转发头或传输层时保持未设置。
type IPFamily string

const (
	// IPFamilyUnset 未设置
	IPFamilyUnset IPFamily = ""

	// IPv4 IPv4 地址
	IPv4 IPFamily = "IPv4"

	// IPv6 IPv6 地址
	IPv6 IPFamily = "IPv6"
)

// ============================================================================
//                              实例记录
// ============================================================================

// Instance 已加入集群的实例记录
//
// 以连接标识为键存放在注册表中，连接断开时移除。
// 地址字段仅对 broker 实例有意义，用于构造连接 URI。
type Instance struct {
	// ConnID 传输层连接标识，连接存续期内唯一且稳定
	ConnID string

	// InstanceID 调用方上报的逻辑实例标识
	InstanceID string

	// Type 实例角色
	Type InstanceType

	// IP 解析后的实例地址
	IP string

	// IPFamily 地址族，仅在载荷显式提供 instanceIp 时设置
	IPFamily IPFamily

	// Port 实例监听端口
	Port int

	// Secure 是否通过 TLS 提供服务（决定 URI 使用 ws 还是 wss）
	Secure bool

	// JoinedAt 加入时间
	JoinedAt time.Time
}

// ============================================================================
//                              集群状态快照
// ============================================================================

// ClusterState 集群状态快照
//
// 按需从注册表的 broker 映射推导，不做持久化。
// BrokerURIs 已去重；顺序与语义无关，为保证传输确定性会排序。
type ClusterState struct {
	// BrokerURIs 当前可达的 broker 连接 URI 列表
	BrokerURIs []string `json:"brokerURIs"`

	// Time 快照构造时间（Unix 毫秒）
	Time int64 `json:"time"`
}
