// Package registry 维护集群成员注册表
//
// broker 与 worker 两个映射以连接标识为键，是"当前谁在集群中"
// 的唯一事实来源。所有变更操作与快照读取在同一把锁下执行，
// 快照永远不会观察到部分生效的变更。
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/SocketCluster/agc-state/internal/netaddr"
	"github.com/SocketCluster/agc-state/pkg/types"
)

// ============================================================================
//                              Store 存储
// ============================================================================

// Store 成员注册表
//
// 不变量：任一连接标识至多出现在两个映射之一。
// 移除操作幂等，移除不存在的条目是无操作而非错误。
type Store struct {
	mu sync.RWMutex

	// brokers: connID -> Instance
	brokers map[string]types.Instance

	// workers: connID -> Instance
	workers map[string]types.Instance
}

// NewStore 创建注册表
func NewStore() *Store {
	return &Store{
		brokers: make(map[string]types.Instance),
		workers: make(map[string]types.Instance),
	}
}

// ============================================================================
//                              变更操作
// ============================================================================

// AddBroker 插入或覆盖 broker 条目
//
// 同一连接此前若以 worker 身份注册，会先从 worker 映射移除，
// 维持"至多出现在一个映射"的不变量。
func (s *Store) AddBroker(inst types.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.workers, inst.ConnID)
	s.brokers[inst.ConnID] = inst
}

// RemoveBroker 幂等移除 broker 条目
//
// 返回是否实际移除了条目。
func (s *Store) RemoveBroker(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.brokers[connID]; !exists {
		return false
	}
	delete(s.brokers, connID)
	return true
}

// AddWorker 插入或覆盖 worker 条目
func (s *Store) AddWorker(inst types.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.brokers, inst.ConnID)
	s.workers[inst.ConnID] = inst
}

// RemoveWorker 幂等移除 worker 条目
//
// 返回是否实际移除了条目。
func (s *Store) RemoveWorker(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workers[connID]; !exists {
		return false
	}
	delete(s.workers, connID)
	return true
}

// Remove 从持有该连接的映射中移除条目
//
// 用于连接断开：调用方不知道连接此前的角色。
// 返回被移除实例的角色；两个映射都没有时返回空。
func (s *Store) Remove(connID string) types.InstanceType {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.brokers[connID]; exists {
		delete(s.brokers, connID)
		return types.InstanceTypeBroker
	}
	if _, exists := s.workers[connID]; exists {
		delete(s.workers, connID)
		return types.InstanceTypeWorker
	}
	return ""
}

// ============================================================================
//                              查询操作
// ============================================================================

// Snapshot 计算当前集群状态快照
//
// URI 去重：同一 address:port 背后的多个 broker 只报告一次。
// 结果排序以保证传输确定性，顺序本身无语义。
func (s *Store) Snapshot(now time.Time) types.ClusterState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.brokers))
	uris := make([]string, 0, len(s.brokers))
	for _, inst := range s.brokers {
		uri := netaddr.InstanceURI(inst)
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	return types.ClusterState{
		BrokerURIs: uris,
		Time:       now.UnixMilli(),
	}
}

// Workers 返回当前 worker 连接标识列表
func (s *Store) Workers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.workers))
	for connID := range s.workers {
		ids = append(ids, connID)
	}
	return ids
}

// Broker 查询 broker 条目
func (s *Store) Broker(connID string) (types.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.brokers[connID]
	return inst, ok
}

// Worker 查询 worker 条目
func (s *Store) Worker(connID string) (types.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.workers[connID]
	return inst, ok
}

// ============================================================================
//                              统计
// ============================================================================

// Stats 统计信息
type Stats struct {
	Brokers int
	Workers int
}

// Stats 返回统计信息
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Brokers: len(s.brokers),
		Workers: len(s.workers),
	}
}
