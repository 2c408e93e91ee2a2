package debounce

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-permsync/internal/core/metrics"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var logger = log.Logger("core/debounce")

const (
	stateIdle int32 = iota
	stateScheduled
)

// PerformFunc 去抖后执行的动作
type PerformFunc[K comparable] func(key K) error

// Request 单个键上的去抖请求
type Request[K comparable] struct {
	key     K
	delay   time.Duration
	perform PerformFunc[K]

	clk     clock.Clock
	extend  bool
	metrics *metrics.Collectors

	state atomic.Int32

	// deadline 下一次执行的截止时间（UnixNano）
	deadline atomic.Int64
}

// NewRequest 创建去抖请求
//
// delay 为最小静默间隔，perform 在每个调度周期至多执行一次。
func NewRequest[K comparable](key K, delay time.Duration, perform PerformFunc[K], opts ...Option) *Request[K] {
	o := newOptions(opts)
	return &Request[K]{
		key:     key,
		delay:   delay,
		perform: perform,
		clk:     o.clk,
		extend:  o.extend,
		metrics: o.metrics,
	}
}

// Key 返回请求的键
func (r *Request[K]) Key() K {
	return r.key
}

// Pending 是否有待执行的调用
func (r *Request[K]) Pending() bool {
	return r.state.Load() == stateScheduled
}

// Deadline 返回当前截止时间，空闲时返回零值
func (r *Request[K]) Deadline() time.Time {
	if !r.Pending() {
		return time.Time{}
	}
	return time.Unix(0, r.deadline.Load())
}

// Request 请求一次执行
//
// 空闲时安排在 now+delay 执行；已安排时不再安排新的调用。
// 并发安全，永不阻塞。
func (r *Request[K]) Request() {
	due := r.clk.Now().Add(r.delay).UnixNano()

	if r.state.CompareAndSwap(stateIdle, stateScheduled) {
		r.pushDeadline(due)
		r.clk.AfterFunc(r.delay, r.fire)
		r.metrics.DebounceRequested(false)
		return
	}

	if r.extend {
		r.pushDeadline(due)
	}
	r.metrics.DebounceRequested(true)
}

// pushDeadline 只向后推进截止时间
func (r *Request[K]) pushDeadline(due int64) {
	for {
		cur := r.deadline.Load()
		if cur >= due || r.deadline.CompareAndSwap(cur, due) {
			return
		}
	}
}

// fire 定时器到期
func (r *Request[K]) fire() {
	if r.extend {
		now := r.clk.Now()
		if remaining := time.Unix(0, r.deadline.Load()).Sub(now); remaining > 0 {
			r.clk.AfterFunc(remaining, r.fire)
			return
		}
	}

	// 先复位，执行期间到达的请求会安排新的调用
	r.state.Store(stateIdle)
	r.invoke()
}

// invoke 执行动作，错误与 panic 只记录不传播
func (r *Request[K]) invoke() {
	failed := false
	defer func() {
		if p := recover(); p != nil {
			failed = true
			logger.Error("去抖动作 panic", "key", fmt.Sprint(r.key), "panic", p)
		}
		r.metrics.DebounceInvoked(failed)
	}()

	if err := r.perform(r.key); err != nil {
		failed = true
		logger.Warn("去抖动作执行失败", "key", fmt.Sprint(r.key), "error", err)
	}
}
