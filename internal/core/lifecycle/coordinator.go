// Package lifecycle 提供进程生命周期协调器
//
// 进程按以下阶段推进：
//
//	Created → Enabling → Enabled → Disabling → Disabled
//
// Enabled 即"已完全启动"信号。准入流水线在放行首批连接之前
// 通过 AwaitReady 等待该信号，等待有上限，超时由调用方决定如何继续。
//
// 本模块的核心职责：
//  1. 定义生命周期阶段 gate
//  2. 提供一次性广播的就绪信号
//  3. 确保各阶段按序推进
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var logger = log.Logger("core/lifecycle")

// ============================================================================
//                              阶段定义
// ============================================================================

// Phase 生命周期阶段
type Phase int

const (
	// PhaseCreated 已创建，未启动
	PhaseCreated Phase = iota

	// PhaseEnabling 启动中：各组件正在初始化，存储与调度器尚未全部就绪
	PhaseEnabling

	// PhaseEnabled 已完全启动
	PhaseEnabled

	// PhaseDisabling 关闭中
	PhaseDisabling

	// PhaseDisabled 已关闭
	PhaseDisabled
)

// String 返回阶段字符串表示
func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseEnabling:
		return "enabling"
	case PhaseEnabled:
		return "enabled"
	case PhaseDisabling:
		return "disabling"
	case PhaseDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// ============================================================================
//                              生命周期协调器
// ============================================================================

// Coordinator 生命周期协调器
//
// 核心职责：
//  1. 追踪当前生命周期阶段
//  2. 提供阶段 gate（等待特定阶段完成）
//  3. 通知阶段变更
type Coordinator struct {
	mu sync.RWMutex

	clk clock.Clock

	// 当前阶段
	phase Phase

	// 阶段完成信号 map
	// key: 阶段, value: 已关闭的 channel（表示该阶段已到达）
	phaseSignals map[Phase]chan struct{}

	// 阶段变更回调
	onPhaseChange []func(old, new Phase)

	// 上下文
	ctx    context.Context
	cancel context.CancelFunc
}

var _ interfaces.ReadinessGate = (*Coordinator)(nil)

// Option 协调器选项
type Option func(*Coordinator)

// WithClock 设置时钟（测试使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clk = clk
	}
}

// NewCoordinator 创建生命周期协调器
func NewCoordinator(opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		clk:          clock.New(),
		phase:        PhaseCreated,
		phaseSignals: make(map[Phase]chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	for p := PhaseCreated; p <= PhaseDisabled; p++ {
		c.phaseSignals[p] = make(chan struct{})
	}
	close(c.phaseSignals[PhaseCreated])

	return c
}

// ============================================================================
//                              阶段管理
// ============================================================================

// Phase 返回当前阶段
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// AdvanceTo 推进到指定阶段
//
// 规则：
//   - 只能向前推进，不能后退
//   - 会自动完成中间所有阶段的信号
func (c *Coordinator) AdvanceTo(target Phase) error {
	if target < PhaseCreated || target > PhaseDisabled {
		return fmt.Errorf("lifecycle: invalid phase: %d", target)
	}

	c.mu.Lock()

	if target < c.phase {
		current := c.phase
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: cannot advance backwards: current=%s target=%s", current, target)
	}

	if target == c.phase {
		c.mu.Unlock()
		return nil
	}

	old := c.phase
	for p := c.phase; p <= target; p++ {
		ch := c.phaseSignals[p]
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	c.phase = target

	callbacks := make([]func(old, new Phase), len(c.onPhaseChange))
	copy(callbacks, c.onPhaseChange)
	c.mu.Unlock()

	logger.Info("生命周期阶段推进",
		"from", old.String(),
		"to", target.String())

	// 异步通知，避免回调阻塞
	go func() {
		for _, cb := range callbacks {
			cb(old, target)
		}
	}()

	return nil
}

// MarkReady 标记进程已完全启动
//
// 等价于 AdvanceTo(PhaseEnabled)；已经越过 Enabled 时不做任何事。
func (c *Coordinator) MarkReady() {
	if c.IsCompleted(PhaseEnabled) {
		return
	}
	if err := c.AdvanceTo(PhaseEnabled); err != nil {
		logger.Debug("标记就绪失败", "error", err)
	}
}

// WaitFor 等待指定阶段到达
//
// 阻塞直到目标阶段到达或上下文取消。
func (c *Coordinator) WaitFor(ctx context.Context, phase Phase) error {
	c.mu.RLock()
	ch := c.phaseSignals[phase]
	c.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("lifecycle: invalid phase: %d", phase)
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// AwaitReady 等待进程完全启动，最多等待 timeout
//
// 返回 false 表示等待超时或协调器已停止，调用方应继续执行。
func (c *Coordinator) AwaitReady(timeout time.Duration) bool {
	c.mu.RLock()
	ch := c.phaseSignals[PhaseEnabled]
	c.mu.RUnlock()

	select {
	case <-ch:
		return true
	default:
	}

	timer := c.clk.Timer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		logger.Debug("等待进程启动超时", "timeout", timeout)
		return false
	case <-c.ctx.Done():
		return false
	}
}

// IsCompleted 检查指定阶段是否已到达
func (c *Coordinator) IsCompleted(phase Phase) bool {
	c.mu.RLock()
	ch := c.phaseSignals[phase]
	c.mu.RUnlock()

	if ch == nil {
		return false
	}

	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Ready 返回就绪信号 channel，用于 select
func (c *Coordinator) Ready() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phaseSignals[PhaseEnabled]
}

// ============================================================================
//                              回调管理
// ============================================================================

// OnPhaseChange 注册阶段变更回调
func (c *Coordinator) OnPhaseChange(callback func(old, new Phase)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhaseChange = append(c.onPhaseChange, callback)
}

// ============================================================================
//                              生命周期控制
// ============================================================================

// Stop 停止协调器，解除所有等待者
func (c *Coordinator) Stop() {
	c.cancel()
}

// Context 返回协调器上下文
func (c *Coordinator) Context() context.Context {
	return c.ctx
}
