package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

// TestScheduler_Coalescing 测试连续触发合并为一次执行
func TestScheduler_Coalescing(t *testing.T) {
	clk := clock.NewMock()
	var fired atomic.Int32
	s := NewScheduler(clk, func() { fired.Add(1) })

	// 三次加入落在同一个防抖窗口内
	s.Arm(5 * time.Second)
	clk.Add(2 * time.Second)
	s.Arm(5 * time.Second)
	clk.Add(2 * time.Second)
	s.Arm(5 * time.Second)

	// 最后一次触发后不足 delay，不应执行
	clk.Add(4999 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	clk.Add(1 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())

	// 之后再无残留任务
	clk.Add(time.Minute)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, s.Pending())

	t.Log("✅ Scheduler 合并触发测试通过")
}

// TestScheduler_LatestDelayWins 测试最近一次安排的延迟胜出
func TestScheduler_LatestDelayWins(t *testing.T) {
	clk := clock.NewMock()
	var fired atomic.Int32
	s := NewScheduler(clk, func() { fired.Add(1) })

	// 加入（长延迟）后紧跟离开（短延迟）
	s.Arm(5 * time.Second)
	clk.Add(1 * time.Second)
	s.Arm(1 * time.Second)

	// 离开的延迟胜出：1 秒后执行一次，而非原定的 5 秒
	clk.Add(1 * time.Second)
	assert.Equal(t, int32(1), fired.Load())

	clk.Add(10 * time.Second)
	assert.Equal(t, int32(1), fired.Load())

	t.Log("✅ Scheduler 最近延迟胜出测试通过")
}

// TestScheduler_LongerDelayAlsoWins 测试更长的延迟同样替换槽位
func TestScheduler_LongerDelayAlsoWins(t *testing.T) {
	clk := clock.NewMock()
	var fired atomic.Int32
	s := NewScheduler(clk, func() { fired.Add(1) })

	s.Arm(1 * time.Second)
	s.Arm(5 * time.Second)

	// 原定 1 秒的任务已被取消
	clk.Add(1 * time.Second)
	assert.Equal(t, int32(0), fired.Load())

	clk.Add(4 * time.Second)
	assert.Equal(t, int32(1), fired.Load())

	t.Log("✅ Scheduler 延长延迟测试通过")
}

// TestScheduler_Stop 测试取消挂起任务
func TestScheduler_Stop(t *testing.T) {
	clk := clock.NewMock()
	var fired atomic.Int32
	s := NewScheduler(clk, func() { fired.Add(1) })

	s.Arm(1 * time.Second)
	assert.True(t, s.Pending())

	s.Stop()
	assert.False(t, s.Pending())

	clk.Add(time.Minute)
	assert.Equal(t, int32(0), fired.Load())

	t.Log("✅ Scheduler.Stop 测试通过")
}

// TestScheduler_RearmFromAction 测试动作内再次安排
func TestScheduler_RearmFromAction(t *testing.T) {
	clk := clock.NewMock()
	var fired atomic.Int32
	var s *Scheduler
	s = NewScheduler(clk, func() {
		if fired.Add(1) == 1 {
			s.Arm(1 * time.Second)
		}
	})

	s.Arm(1 * time.Second)
	clk.Add(1 * time.Second)
	assert.Equal(t, int32(1), fired.Load())

	clk.Add(1 * time.Second)
	assert.Equal(t, int32(2), fired.Load())

	t.Log("✅ Scheduler 动作内重新安排测试通过")
}
