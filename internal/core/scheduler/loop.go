package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eapache/queue"

	"github.com/dep2p/go-permsync/internal/core/metrics"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var logger = log.Logger("core/scheduler")

// DefaultTickInterval 默认 tick 间隔
const DefaultTickInterval = 50 * time.Millisecond

var (
	// ErrAlreadyStarted 已启动
	ErrAlreadyStarted = errors.New("scheduler: already started")
)

// Loop 指定执行上下文
type Loop struct {
	clk     clock.Clock
	tick    time.Duration
	metrics *metrics.Collectors

	mu   sync.Mutex
	now  *queue.Queue
	next *queue.Queue

	wake chan struct{}

	executing atomic.Bool
	ticks     atomic.Uint64

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ interfaces.Scheduler = (*Loop)(nil)

// Option 选项
type Option func(*Loop)

// WithClock 设置时钟（测试使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(l *Loop) {
		if clk != nil {
			l.clk = clk
		}
	}
}

// WithTickInterval 设置 tick 间隔
func WithTickInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.tick = d
		}
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Collectors) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// NewLoop 创建执行上下文
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		clk:  clock.New(),
		tick: DefaultTickInterval,
		now:  queue.New(),
		next: queue.New(),
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunOnDesignated 在指定执行上下文中尽快执行 task
func (l *Loop) RunOnDesignated(task func()) {
	if task == nil {
		return
	}
	l.mu.Lock()
	l.now.Add(task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// RunAfterTick 在指定执行上下文的下一个 tick 执行 task
func (l *Loop) RunAfterTick(task func()) {
	if task == nil {
		return
	}
	l.mu.Lock()
	l.next.Add(task)
	l.mu.Unlock()
}

// Executing 当前是否正在指定执行上下文中执行任务
func (l *Loop) Executing() bool {
	return l.executing.Load()
}

// Ticks 返回已经过的 tick 数
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Pending 返回排队中的任务数
func (l *Loop) Pending() (now, afterTick int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now.Length(), l.next.Length()
}

// Start 启动执行协程
func (l *Loop) Start(_ context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	// 使用独立的 context，避免 fx OnStart 的 ctx 超时后被取消
	l.ctx, l.cancel = context.WithCancel(context.Background())
	ticker := l.clk.Ticker(l.tick)

	l.wg.Add(1)
	go l.run(ticker)

	logger.Debug("指定执行上下文已启动", "tick", l.tick)
	return nil
}

// Stop 停止执行协程
//
// 已经排队的即时任务会在退出前执行完，尚未到 tick 的任务被丢弃。
func (l *Loop) Stop() error {
	if !l.started.Load() || l.cancel == nil {
		return nil
	}
	l.cancel()
	l.wg.Wait()

	l.mu.Lock()
	dropped := l.next.Length()
	l.next = queue.New()
	l.mu.Unlock()

	if dropped > 0 {
		logger.Warn("停止时丢弃未执行的 tick 任务", "count", dropped)
	}
	return nil
}

func (l *Loop) run(ticker *clock.Ticker) {
	defer l.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			l.drain()
			return
		case <-l.wake:
			l.drain()
		case <-ticker.C:
			l.ticks.Add(1)
			l.mu.Lock()
			for l.next.Length() > 0 {
				l.now.Add(l.next.Remove())
			}
			l.mu.Unlock()
			l.drain()
		}
	}
}

// drain 依次执行即时队列中的任务，执行期间新提交的任务也会被执行
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if l.now.Length() == 0 {
			l.mu.Unlock()
			return
		}
		task := l.now.Remove().(func())
		l.mu.Unlock()

		l.runTask(task)
	}
}

func (l *Loop) runTask(task func()) {
	panicked := false
	l.executing.Store(true)
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			logger.Error("指定执行上下文任务 panic", "panic", r)
		}
		l.executing.Store(false)
		l.metrics.TaskRun(panicked)
	}()
	task()
}
