package gate

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/SocketCluster/agc-state/pkg/protocol"
)

// ReadinessGate 启动就绪闸门
//
// 进程级只读翻转开关：宽限期为正时以未就绪启动，一次性
// 定时器到期后永久就绪，进程生命周期内不再复位。宽限期
// 内 worker 加入被拒绝，避免绑定到尚未收敛的 broker 集合；
// broker 注册不受此闸门约束。
type ReadinessGate struct {
	ready atomic.Bool
	timer *clock.Timer
}

// NewReadinessGate 创建就绪闸门
//
// delay 不为正时启动即就绪。
func NewReadinessGate(clk clock.Clock, delay time.Duration) *ReadinessGate {
	g := &ReadinessGate{}
	if delay <= 0 {
		g.ready.Store(true)
		return g
	}

	g.timer = clk.AfterFunc(delay, func() {
		g.ready.Store(true)
		logger.Info("启动宽限期结束，开始接受 worker 加入",
			"startup_delay", delay)
	})
	return g
}

// Ready 返回是否已就绪
func (g *ReadinessGate) Ready() bool {
	return g.ready.Load()
}

// Check 就绪检查
//
// 未就绪时返回 NotReadyError；该错误同步返回给具体的加入
// 请求，不关闭连接，远端可稍后重试同一加入。
func (g *ReadinessGate) Check() *protocol.Error {
	if g.Ready() {
		return nil
	}
	return protocol.NewError(protocol.ErrNameNotReady,
		"The state server is not ready to accept worker instances yet")
}

// Stop 取消尚未到期的宽限期定时器
//
// 仅用于进程关闭路径；已就绪的闸门不受影响。
func (g *ReadinessGate) Stop() {
	if g.timer != nil {
		g.timer.Stop()
	}
}
