package coordinator

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/SocketCluster/agc-state/internal/broadcast"
	"github.com/SocketCluster/agc-state/internal/debounce"
	"github.com/SocketCluster/agc-state/internal/gate"
	"github.com/SocketCluster/agc-state/internal/metrics"
	"github.com/SocketCluster/agc-state/internal/netaddr"
	"github.com/SocketCluster/agc-state/internal/registry"
	"github.com/SocketCluster/agc-state/pkg/lib/log"
	"github.com/SocketCluster/agc-state/pkg/protocol"
	"github.com/SocketCluster/agc-state/pkg/types"
)

var logger = log.Logger("cluster/coordinator")

// ============================================================================
//                              接口定义
// ============================================================================

// RemoteConn 传输层连接句柄
//
// 协调器只通过该接口与连接交互：读取握手信息、检查存活、
// 发起出站调用。注册表内部不持有句柄，仅以连接标识为键
// 存放实例元数据。
type RemoteConn interface {
	// ID 连接标识，连接存续期内唯一且稳定
	ID() string

	// IsOpen 连接是否仍然打开
	IsOpen() bool

	// RemoteAddr 传输层远端地址
	RemoteAddr() string

	// HandshakeHeader 握手请求头
	HandshakeHeader() http.Header

	// Invoke 向远端发起命名调用并等待确认
	Invoke(ctx context.Context, event string, data any) error
}

// ============================================================================
//                              Coordinator 结构体
// ============================================================================

// Coordinator 集群成员协调器
//
// 持有成员注册表、防抖调度器、可靠广播器与各握手门卫，
// 是进程内唯一的成员状态所有者。连接层事件并发到达，
// 对共享状态的影响由注册表与协调器自身的锁串行化。
type Coordinator struct {
	// 配置
	config *Config
	clk    clock.Clock

	// 核心组件
	store      *registry.Store
	scheduler  *debounce.Scheduler
	caster     *broadcast.Broadcaster
	readiness  *gate.ReadinessGate
	resolver   netaddr.Resolver
	rejections *gate.RejectionLog
	metrics    *metrics.Metrics

	// 广播目标管理
	mu          sync.Mutex
	workerConns map[string]RemoteConn

	// 状态管理
	closed atomic.Bool
}

// ============================================================================
//                              构造函数
// ============================================================================

// New 创建协调器
//
// 启动宽限期从创建时刻起算；配置为 nil 时使用默认配置，
// m 为 nil 时使用独立的指标实例。
func New(config *Config, clk clock.Clock, m *metrics.Metrics) (*Coordinator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New()
	}

	c := &Coordinator{
		config:      config,
		clk:         clk,
		store:       registry.NewStore(),
		caster:      broadcast.NewBroadcaster(clk, config.RetryDelay),
		readiness:   gate.NewReadinessGate(clk, config.StartupDelay),
		resolver:    netaddr.Resolver{ForwardedForHeader: config.ForwardedForHeader},
		rejections:  gate.NewRejectionLog(config.RejectionLogSize),
		metrics:     m,
		workerConns: make(map[string]RemoteConn),
	}
	c.scheduler = debounce.NewScheduler(clk, c.fireBroadcast)

	m.RegisterDeliveryStats(func() (delivered, retries, abandoned uint64) {
		stats := c.caster.Stats()
		return stats.Delivered, stats.Retries, stats.Abandoned
	})

	logger.Info("协调器已创建",
		"required_major", config.RequiredMajor,
		"scale_out_delay", config.ScaleOutDelay,
		"scale_back_delay", config.ScaleBackDelay,
		"startup_delay", config.StartupDelay)

	return c, nil
}

// Close 关闭协调器
//
// 取消未触发的防抖广播，停止所有投递循环并等待其退出。
func (c *Coordinator) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.scheduler.Stop()
	c.readiness.Stop()
	c.caster.Close()

	logger.Info("协调器已关闭")
}

// ============================================================================
//                              握手检查
// ============================================================================

// CheckHandshake 执行握手准入检查
//
// 先验证共享密钥，再验证主版本兼容性。任一检查失败即
// 拒绝连接，连接不会进入注册表。
func (c *Coordinator) CheckHandshake(authKey, reportedVersion, instanceType string) *protocol.Error {
	if perr := gate.CheckAuthKey(c.config.AuthKey, authKey); perr != nil {
		return perr
	}
	return gate.CheckVersion(c.config.RequiredMajor, reportedVersion, types.InstanceType(instanceType))
}

// RecordRejection 记录一次握手拒绝
func (c *Coordinator) RecordRejection(remoteAddr string, perr *protocol.Error) {
	c.rejections.Record(remoteAddr, perr, c.clk.Now())
	c.metrics.HandshakeRejected(perr.Name)
}

// ============================================================================
//                              成员操作
// ============================================================================

// BrokerJoin 处理 broker 加入
//
// 记录实例并以 scale-out 延迟安排一次防抖广播。
// 插入总是成功；同一连接重复加入为覆盖写。
func (c *Coordinator) BrokerJoin(conn RemoteConn, payload protocol.JoinPayload) {
	inst := c.buildInstance(conn, payload, types.InstanceTypeBroker)

	c.store.AddBroker(inst)
	c.mu.Lock()
	// 同一连接此前若注册为 worker，不再作为广播目标
	delete(c.workerConns, conn.ID())
	c.mu.Unlock()

	// 加入分发与断开回调可能交错：插入后连接已关闭则撤销，
	// 避免已死连接残留在注册表中
	if !conn.IsOpen() {
		c.store.RemoveBroker(conn.ID())
		c.publishMembership()
		logger.Debug("broker 加入时连接已关闭，撤销注册",
			"conn_id", log.TruncateID(conn.ID(), 8))
		return
	}

	logger.Info("broker 已加入",
		"instance_id", inst.InstanceID,
		"conn_id", log.TruncateID(conn.ID(), 8),
		"uri", netaddr.InstanceURI(inst))

	c.publishMembership()
	c.armScaleOut()
}

// BrokerLeave 处理 broker 主动离开
//
// 删除幂等；无论此前是否注册，都以 scale-back 延迟
// 安排一次防抖广播。
func (c *Coordinator) BrokerLeave(conn RemoteConn) {
	if c.store.RemoveBroker(conn.ID()) {
		logger.Info("broker 已离开", "conn_id", log.TruncateID(conn.ID(), 8))
	}

	c.publishMembership()
	c.armScaleBack()
}

// WorkerJoin 处理 worker 加入
//
// 启动宽限期内拒绝并返回 NotReadyError，连接保持打开，
// 远端可稍后重试。成功时同步返回当前集群状态快照，
// 不等待防抖延迟。
func (c *Coordinator) WorkerJoin(conn RemoteConn, payload protocol.JoinPayload) (types.ClusterState, error) {
	if perr := c.readiness.Check(); perr != nil {
		c.metrics.WorkerJoinRejected()
		logger.Warn("worker 加入被拒绝：启动宽限期未结束",
			"instance_id", payload.InstanceID,
			"conn_id", log.TruncateID(conn.ID(), 8))
		return types.ClusterState{}, perr
	}

	inst := c.buildInstance(conn, payload, types.InstanceTypeWorker)

	c.store.AddWorker(inst)
	c.mu.Lock()
	c.workerConns[conn.ID()] = conn
	c.mu.Unlock()

	if !conn.IsOpen() {
		c.removeWorker(conn.ID())
	} else {
		logger.Info("worker 已加入",
			"instance_id", inst.InstanceID,
			"conn_id", log.TruncateID(conn.ID(), 8))
	}

	c.publishMembership()
	return c.store.Snapshot(c.clk.Now()), nil
}

// WorkerLeave 处理 worker 主动离开
//
// worker 的离开不影响 broker 集合，不触发广播。
func (c *Coordinator) WorkerLeave(conn RemoteConn) {
	if c.removeWorker(conn.ID()) {
		logger.Info("worker 已离开", "conn_id", log.TruncateID(conn.ID(), 8))
	}
	c.publishMembership()
}

// HandleConnect 处理连接建立
//
// 连接尚未注册为任何角色，只计入连接指标。
func (c *Coordinator) HandleConnect(conn RemoteConn) {
	c.metrics.ConnOpened()
	logger.Debug("连接已通过握手", "conn_id", log.TruncateID(conn.ID(), 8))
}

// HandleDisconnect 处理连接断开
//
// 按连接此前注册的角色清理：broker 断开等同于离开，
// 以 scale-back 延迟安排广播；worker 断开仅移除。
func (c *Coordinator) HandleDisconnect(conn RemoteConn) {
	c.metrics.ConnClosed()
	typ := c.store.Remove(conn.ID())

	c.mu.Lock()
	delete(c.workerConns, conn.ID())
	c.mu.Unlock()

	switch typ {
	case types.InstanceTypeBroker:
		logger.Info("broker 连接断开", "conn_id", log.TruncateID(conn.ID(), 8))
		c.publishMembership()
		c.armScaleBack()
	case types.InstanceTypeWorker:
		logger.Info("worker 连接断开", "conn_id", log.TruncateID(conn.ID(), 8))
		c.publishMembership()
	}
}

// ============================================================================
//                              查询操作
// ============================================================================

// Snapshot 返回当前集群状态快照
func (c *Coordinator) Snapshot() types.ClusterState {
	return c.store.Snapshot(c.clk.Now())
}

// Ready 返回启动宽限期是否已结束
func (c *Coordinator) Ready() bool {
	return c.readiness.Ready()
}

// Stats 协调器运行统计
type Stats struct {
	// Brokers 当前注册的 broker 数
	Brokers int `json:"brokers"`

	// Workers 当前注册的 worker 数
	Workers int `json:"workers"`

	// Ready 启动宽限期是否已结束
	Ready bool `json:"ready"`

	// BroadcastPending 是否有未触发的防抖广播
	BroadcastPending bool `json:"broadcastPending"`

	// Delivery 广播投递统计
	Delivery broadcast.BroadcasterStats `json:"delivery"`
}

// GetStats 返回运行统计
func (c *Coordinator) GetStats() Stats {
	st := c.store.Stats()
	return Stats{
		Brokers:          st.Brokers,
		Workers:          st.Workers,
		Ready:            c.readiness.Ready(),
		BroadcastPending: c.scheduler.Pending(),
		Delivery:         c.caster.Stats(),
	}
}

// RecentRejections 返回最近的握手拒绝记录
func (c *Coordinator) RecentRejections() []gate.Rejection {
	return c.rejections.Recent()
}

// ============================================================================
//                              内部方法
// ============================================================================

// buildInstance 从加入载荷构造实例记录
func (c *Coordinator) buildInstance(conn RemoteConn, payload protocol.JoinPayload, typ types.InstanceType) types.Instance {
	ip, fromPayload := c.resolver.Resolve(payload.InstanceIP, conn.HandshakeHeader(), conn.RemoteAddr())

	inst := types.Instance{
		ConnID:     conn.ID(),
		InstanceID: payload.InstanceID,
		Type:       typ,
		IP:         ip,
		Port:       payload.InstancePort,
		Secure:     payload.InstanceSecure,
		JoinedAt:   c.clk.Now(),
	}
	// 地址族仅在载荷显式携带 instanceIp 时记录
	if fromPayload {
		inst.IPFamily = types.IPFamily(payload.InstanceIPFamily)
	}
	return inst
}

// removeWorker 从注册表和广播目标中移除 worker
func (c *Coordinator) removeWorker(connID string) bool {
	removed := c.store.RemoveWorker(connID)

	c.mu.Lock()
	delete(c.workerConns, connID)
	c.mu.Unlock()

	return removed
}

// workerTargets 返回当前广播目标集合
func (c *Coordinator) workerTargets() []broadcast.Target {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := make([]broadcast.Target, 0, len(c.workerConns))
	for _, conn := range c.workerConns {
		targets = append(targets, conn)
	}
	return targets
}

// armScaleOut 以 scale-out 延迟安排防抖广播
func (c *Coordinator) armScaleOut() {
	c.metrics.BroadcastScheduled(metrics.ReasonScaleOut)
	c.scheduler.Arm(c.config.ScaleOutDelay)
}

// armScaleBack 以 scale-back 延迟安排防抖广播
//
// 共享同一个定时器槽：紧随加入之后的离开会取消加入安排的
// 广播并以离开延迟重新安排，最后一次事件的延迟总是生效。
func (c *Coordinator) armScaleBack() {
	c.metrics.BroadcastScheduled(metrics.ReasonScaleBack)
	c.scheduler.Arm(c.config.ScaleBackDelay)
}

// fireBroadcast 防抖到期动作：取快照并交给广播器
func (c *Coordinator) fireBroadcast() {
	snapshot := c.store.Snapshot(c.clk.Now())
	targets := c.workerTargets()

	logger.Info("广播 broker 集合变更",
		"broker_uris", len(snapshot.BrokerURIs),
		"workers", len(targets))

	c.metrics.BroadcastFired()
	c.caster.Broadcast(protocol.EventBrokerSetChange, snapshot, targets)
}

// publishMembership 刷新成员数指标
func (c *Coordinator) publishMembership() {
	stats := c.store.Stats()
	c.metrics.SetMembership(stats.Brokers, stats.Workers)
}
