// Package broadcast 提供可靠的集群状态广播
//
// 每个目标独立投递：调用失败且连接仍打开时按固定间隔无限
// 重试，连接关闭后静默放弃。单个目标的失败或重试不阻塞、
// 不影响其他目标的投递。重复投递同一幂等快照是可接受且
// 预期的行为。
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/SocketCluster/agc-state/pkg/lib/log"
)

var logger = log.Logger("cluster/broadcast")

// ============================================================================
//                              接口定义
// ============================================================================

// Target 广播目标
//
// 由传输层连接实现。IsOpen 在每个重试边界被检查，
// 连接一旦关闭即放弃该目标的投递。
type Target interface {
	// ID 连接标识
	ID() string

	// IsOpen 连接是否仍然打开
	IsOpen() bool

	// Invoke 向目标发起命名调用并等待确认
	Invoke(ctx context.Context, event string, data any) error
}

// ============================================================================
//                              广播器
// ============================================================================

// Broadcaster 可靠广播器
type Broadcaster struct {
	clk        clock.Clock
	retryDelay time.Duration

	closed int32
	stop   chan struct{}
	wg     sync.WaitGroup

	// 统计
	stats BroadcasterStats
}

// BroadcasterStats 广播器统计
type BroadcasterStats struct {
	// Delivered 成功投递数
	Delivered uint64 `json:"delivered"`

	// Retries 重试次数
	Retries uint64 `json:"retries"`

	// Abandoned 因连接关闭放弃数
	Abandoned uint64 `json:"abandoned"`
}

// NewBroadcaster 创建广播器
func NewBroadcaster(clk clock.Clock, retryDelay time.Duration) *Broadcaster {
	return &Broadcaster{
		clk:        clk,
		retryDelay: retryDelay,
		stop:       make(chan struct{}),
	}
}

// ============================================================================
//                              广播接口
// ============================================================================

// Broadcast 将事件并发投递到所有目标
//
// 立即返回；每个目标的投递循环在独立 goroutine 中进行。
// 广播器关闭后调用是无操作。
func (b *Broadcaster) Broadcast(event string, data any, targets []Target) {
	if atomic.LoadInt32(&b.closed) == 1 {
		return
	}

	logger.Debug("广播事件",
		"event", event,
		"targets", len(targets))

	for _, target := range targets {
		b.wg.Add(1)
		go b.deliverLoop(event, data, target)
	}
}

// Stats 返回统计信息
func (b *Broadcaster) Stats() BroadcasterStats {
	return BroadcasterStats{
		Delivered: atomic.LoadUint64(&b.stats.Delivered),
		Retries:   atomic.LoadUint64(&b.stats.Retries),
		Abandoned: atomic.LoadUint64(&b.stats.Abandoned),
	}
}

// ============================================================================
//                              生命周期
// ============================================================================

// Close 停止广播器并等待所有投递循环退出
//
// 进行中的调用不会被打断，循环在下一个重试边界退出。
func (b *Broadcaster) Close() {
	if !atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
		return
	}
	close(b.stop)
	b.wg.Wait()

	logger.Info("广播器已停止")
}

// ============================================================================
//                              内部方法
// ============================================================================

// deliverLoop 单个目标的投递循环
//
// 无最大重试次数：连接保持打开但调用持续失败的目标会按
// 固定间隔永远重试。
func (b *Broadcaster) deliverLoop(event string, data any, target Target) {
	defer b.wg.Done()

	for {
		select {
		case <-b.stop:
			return
		default:
		}

		if !target.IsOpen() {
			atomic.AddUint64(&b.stats.Abandoned, 1)
			logger.Debug("目标连接已关闭，放弃投递",
				"conn_id", log.TruncateID(target.ID(), 8),
				"event", event)
			return
		}

		err := target.Invoke(context.Background(), event, data)
		if err == nil {
			atomic.AddUint64(&b.stats.Delivered, 1)
			return
		}

		atomic.AddUint64(&b.stats.Retries, 1)
		logger.Warn("投递失败，等待重试",
			"conn_id", log.TruncateID(target.ID(), 8),
			"event", event,
			"retry_delay", b.retryDelay,
			"err", err)

		timer := b.clk.Timer(b.retryDelay)
		select {
		case <-b.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
