package protocol

import (
	"encoding/json"
)

// ============================================================================
//                              JSON 帧
// ============================================================================

// CallFrame 调用帧
//
// 双向对称：任一端都可以向对端发起命名过程调用。
// CID 由调用方分配，应答帧通过 RID 关联。
type CallFrame struct {
	// Event 过程或事件名
	Event string `json:"event"`

	// CID 调用标识，连接内单调递增
	CID uint64 `json:"cid"`

	// Data 载荷
	Data json.RawMessage `json:"data,omitempty"`
}

// ReplyFrame 应答帧
//
// Data 与 Error 互斥：成功应答携带 Data，失败应答携带 Error。
type ReplyFrame struct {
	// RID 对应调用帧的 CID
	RID uint64 `json:"rid"`

	// Data 成功应答的载荷
	Data json.RawMessage `json:"data,omitempty"`

	// Error 失败应答的错误
	Error *Error `json:"error,omitempty"`
}

// ============================================================================
//                              加入载荷
// ============================================================================

// JoinPayload brokerJoin / workerJoin 的载荷
//
// 地址字段仅对 broker 有意义。instanceIp 缺失时服务端按
// 转发头、传输层地址的次序推导，此时 instanceIpFamily 不被记录。
type JoinPayload struct {
	// InstanceID 实例逻辑标识
	InstanceID string `json:"instanceId"`

	// InstanceIP 实例显式上报的地址，可缺省
	InstanceIP string `json:"instanceIp,omitempty"`

	// InstanceIPFamily 地址族（IPv4 | IPv6），仅与 InstanceIP 搭配使用
	InstanceIPFamily string `json:"instanceIpFamily,omitempty"`

	// InstancePort 实例监听端口
	InstancePort int `json:"instancePort,omitempty"`

	// InstanceSecure 实例是否通过 TLS 提供服务
	InstanceSecure bool `json:"instanceSecure,omitempty"`
}
