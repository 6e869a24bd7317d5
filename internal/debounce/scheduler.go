// Package debounce 提供单槽位防抖调度器
//
// 任意时刻至多存在一个挂起的定时任务：再次安排（无论触发
// 原因）会取消并替换已有任务，"最后一次请求胜出"，既不是
// 最早的也不是排队执行。broker 加入与离开共用同一个槽位，
// 紧随加入的离开会取消加入的挂起广播并按离开延迟重新调度。
package debounce

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler 单槽位防抖调度器
//
// 时钟通过注入提供，单元测试无需真实定时器。
type Scheduler struct {
	clk clock.Clock
	fn  func()

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64
}

// NewScheduler 创建调度器
//
// fn 是槽位到期时执行的动作，始终相同：取快照并交给广播器。
func NewScheduler(clk clock.Clock, fn func()) *Scheduler {
	return &Scheduler{
		clk: clk,
		fn:  fn,
	}
}

// Arm 取消已有挂起任务并按 delay 重新调度
//
// 最近一次 Arm 的延迟总是胜出，与先前任务的剩余时间无关。
func (s *Scheduler) Arm(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}

	s.gen++
	gen := s.gen
	s.timer = s.clk.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.gen != gen {
			// 定时器到期与重新调度竞争时以最近一次 Arm 为准
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()

		// 槽位已清空后再执行动作，动作内可以安全地再次 Arm
		s.fn()
	})
}

// Pending 返回是否存在挂起任务
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Stop 取消挂起任务
//
// 已经开始执行的动作不会被打断。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
