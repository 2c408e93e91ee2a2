package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-permsync/internal/core/metrics"
	"github.com/dep2p/go-permsync/internal/i18n"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
	"github.com/dep2p/go-permsync/pkg/types"
)

var logger = log.Logger("admission")

// DefaultReadyTimeout 预登录等待进程就绪的默认上限
const DefaultReadyTimeout = 60 * time.Second

// Config 流水线配置
type Config struct {
	// ReadyTimeout 等待进程就绪的上限
	ReadyTimeout time.Duration

	// DebugLogins 输出每次预登录/登录的处理日志
	DebugLogins bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{ReadyTimeout: DefaultReadyTimeout}
}

// Dependencies 流水线协作方
//
// Gate、Contexts、Scheduler、EventBus 可为 nil。
type Dependencies struct {
	Gate      interfaces.ReadinessGate
	Transport interfaces.Transport
	Store     interfaces.StateStore
	Scheduler interfaces.Scheduler
	Contexts  interfaces.ContextSignaler
	Localizer interfaces.Localizer
	EventBus  interfaces.EventBus
	Metrics   *metrics.Collectors
}

// activator 激活后需要登记的传输层（如 connmgr.Manager）
type activator interface {
	MarkActive(conn interfaces.Connection) error
}

// Pipeline 连接准入流水线
type Pipeline struct {
	cfg  Config
	deps Dependencies

	emitter interfaces.Emitter
	phases  *phaseTable
	unique  *UniqueConnections
}

// New 创建准入流水线
func New(cfg Config, deps Dependencies) (*Pipeline, error) {
	if deps.Transport == nil {
		return nil, errors.New("admission: transport is required")
	}
	if deps.Store == nil {
		return nil, errors.New("admission: state store is required")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}

	p := &Pipeline{
		cfg:    cfg,
		deps:   deps,
		phases: newPhaseTable(),
		unique: NewUniqueConnections(),
	}
	if deps.EventBus != nil {
		em, err := deps.EventBus.Emitter(new(types.EvtLoginProcess))
		if err != nil {
			return nil, fmt.Errorf("admission: create emitter: %w", err)
		}
		p.emitter = em
	}
	return p, nil
}

// ============================================================================
//                              预登录
// ============================================================================

// PreAdmit 预登录阶段
//
// 可能阻塞在就绪等待和状态加载上，不持有任何跨 I/O 的锁。
// 连接已不存活时返回 ErrConnectionGone，不加载也不发出事件；
// 加载失败时踢掉连接、发出 State 为 nil 的 EvtLoginProcess 并返回 *LoadError。
func (p *Pipeline) PreAdmit(ctx context.Context, conn interfaces.Connection) error {
	subject, name := conn.Subject(), conn.DisplayName()

	if p.cfg.DebugLogins {
		logger.Info("处理预登录", "subject", subject.ShortString(), "name", name)
	}

	if p.deps.Gate != nil && !p.deps.Gate.AwaitReady(p.cfg.ReadyTimeout) {
		logger.Warn("进程尚未就绪，继续处理预登录",
			"subject", subject.ShortString(),
			"timeout", p.cfg.ReadyTimeout)
	}

	if !p.deps.Transport.IsLive(conn) {
		logger.Info("连接已被取消，不加载权限数据", "subject", subject.ShortString(), "name", name)
		p.deps.Metrics.Admission(metrics.ResultGone)
		return ErrConnectionGone
	}

	p.phases.set(subject, PhaseConnecting)

	state, err := p.deps.Store.Load(ctx, subject, name)
	if err != nil {
		logger.Error("加载用户数据时发生异常", "subject", subject.ShortString(), "name", name, "error", err)
		p.phases.set(subject, PhaseDenied)
		p.terminate(conn, i18n.KeyDatabaseError)
		p.emit(types.EvtLoginProcess{Subject: subject, Name: name, State: nil})
		p.deps.Metrics.Admission(metrics.ResultLoadFailed)
		return &LoadError{Subject: subject, Name: name, Err: err}
	}

	p.unique.Add(subject)
	p.phases.set(subject, PhasePreAdmitted)
	p.emit(types.EvtLoginProcess{Subject: subject, Name: name, State: state})
	p.deps.Metrics.Admission(metrics.ResultAdmitted)
	return nil
}

// ============================================================================
//                              激活
// ============================================================================

// Activate 激活阶段
//
// 状态存在时进入 Active 并通知上下文子系统；
// 状态缺失时拒绝连接并返回 *DenialError。拒绝是终态，不发出上下文信号。
func (p *Pipeline) Activate(conn interfaces.Connection) error {
	subject, name := conn.Subject(), conn.DisplayName()

	if p.cfg.DebugLogins {
		logger.Info("处理登录", "subject", subject.ShortString(), "name", name)
	}

	if _, ok := p.deps.Store.Lookup(subject); !ok {
		var reason error
		if p.unique.Contains(subject) {
			logger.Warn("用户数据当前未预加载，但本次进程中曾处理过其预登录，拒绝登录",
				"subject", subject.ShortString(), "name", name)
			reason = ErrStateVanished
			p.deps.Metrics.Activation(metrics.ResultStateVanished)
		} else {
			logger.Warn("用户数据未预加载，本次进程中从未处理过其预登录，拒绝登录",
				"subject", subject.ShortString(), "name", name)
			reason = ErrNeverPreAdmitted
			p.deps.Metrics.Activation(metrics.ResultNeverPreAdmitted)
		}

		p.phases.set(subject, PhaseDenied)
		p.terminate(conn, i18n.KeyStateError)
		return &DenialError{Subject: subject, Name: name, Reason: reason}
	}

	p.phases.set(subject, PhaseActive)
	if a, ok := p.deps.Transport.(activator); ok {
		if err := a.MarkActive(conn); err != nil {
			logger.Warn("登记活动连接失败", "subject", subject.ShortString(), "error", err)
		}
	}
	p.deps.Metrics.Activation(metrics.ResultActive)

	if p.deps.Contexts != nil {
		p.deps.Contexts.SignalContextUpdate(conn)
	}
	return nil
}

// ============================================================================
//                              断开
// ============================================================================

// Disconnect 断开阶段
//
// 同步清除主体条目并安排状态卸载；上下文清理推迟到下一个 tick，
// 让正在读取该会话的任务先完成。主体已由另一条连接接管时，
// 旧连接的断开不触碰新会话的条目。
func (p *Pipeline) Disconnect(conn interfaces.Connection) {
	subject := conn.Subject()

	if cur, ok := p.deps.Transport.Connection(subject); ok && cur.ID() != conn.ID() {
		logger.Debug("忽略已被取代连接的断开",
			"subject", subject.ShortString(),
			"conn", conn.ID(),
			"current", cur.ID())
		return
	}

	p.phases.remove(subject)
	p.deps.Store.ScheduleUnload(subject)

	if p.deps.Contexts == nil {
		return
	}
	quit := func() { p.deps.Contexts.OnQuit(subject) }
	if p.deps.Scheduler != nil {
		p.deps.Scheduler.RunAfterTick(quit)
		return
	}
	quit()
}

// ============================================================================
//                              查询
// ============================================================================

// Phase 返回主体当前阶段，断开后不存在
func (p *Pipeline) Phase(subject types.SubjectID) (Phase, bool) {
	return p.phases.get(subject)
}

// Tracked 返回有阶段条目的主体数
func (p *Pipeline) Tracked() int {
	return p.phases.len()
}

// UniqueConnections 返回预登录记录
func (p *Pipeline) UniqueConnections() *UniqueConnections {
	return p.unique
}

// Close 关闭事件发射器
func (p *Pipeline) Close() error {
	if p.emitter != nil {
		return p.emitter.Close()
	}
	return nil
}

func (p *Pipeline) terminate(conn interfaces.Connection, key string) {
	msg := key
	if p.deps.Localizer != nil {
		msg = p.deps.Localizer.Render(key, conn.Locale())
	}
	if err := p.deps.Transport.Terminate(conn, msg); err != nil {
		logger.Warn("断开连接失败", "subject", conn.Subject().ShortString(), "error", err)
	}
}

func (p *Pipeline) emit(evt types.EvtLoginProcess) {
	if p.emitter == nil {
		return
	}
	if err := p.emitter.Emit(evt); err != nil {
		logger.Debug("发射登录处理事件失败", "subject", evt.Subject.ShortString(), "error", err)
	}
}
