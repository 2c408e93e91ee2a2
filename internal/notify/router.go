package notify

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-permsync/internal/core/debounce"
	"github.com/dep2p/go-permsync/internal/core/eventbus"
	"github.com/dep2p/go-permsync/internal/core/metrics"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
	"github.com/dep2p/go-permsync/pkg/types"
)

var logger = log.Logger("notify")

// DefaultWindow 默认去抖窗口
const DefaultWindow = 500 * time.Millisecond

var (
	// ErrRouterClosed 路由已关闭
	ErrRouterClosed = errors.New("notify: router closed")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("notify: invalid config")
)

// Config 路由配置
type Config struct {
	// Enabled 为 false 时不订阅任何事件
	Enabled bool

	// Window 去抖窗口
	Window time.Duration

	// IdleTimeout 去抖条目空闲驱逐时间
	IdleTimeout time.Duration

	// ExtendOnRequest 尾沿模式
	ExtendOnRequest bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Window:      DefaultWindow,
		IdleTimeout: debounce.DefaultIdleTimeout,
	}
}

// Dependencies 路由协作方
type Dependencies struct {
	Transport interfaces.Transport
	Scheduler interfaces.Scheduler
	Refresher interfaces.Refresher
	EventBus  interfaces.EventBus
	Metrics   *metrics.Collectors
}

// Option 选项
type Option func(*Router)

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(r *Router) {
		if clk != nil {
			r.clk = clk
		}
	}
}

// Router 通知路由
type Router struct {
	cfg  Config
	deps Dependencies
	clk  clock.Clock

	cache *debounce.Cache[types.SubjectID, *debounce.Request[types.SubjectID]]

	mu         sync.Mutex
	dispatcher *eventbus.Dispatcher
	started    bool
	closed     bool

	requests atomic.Uint64
	dropped  atomic.Uint64
}

// New 创建通知路由
func New(cfg Config, deps Dependencies, opts ...Option) (*Router, error) {
	if deps.Transport == nil {
		return nil, errors.New("notify: transport is required")
	}
	if deps.Scheduler == nil {
		return nil, errors.New("notify: scheduler is required")
	}
	if deps.Refresher == nil {
		return nil, errors.New("notify: refresher is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = debounce.DefaultIdleTimeout
	}
	if cfg.IdleTimeout <= cfg.Window {
		return nil, fmt.Errorf("%w: idle timeout %s must be longer than window %s", ErrInvalidConfig, cfg.IdleTimeout, cfg.Window)
	}

	r := &Router{cfg: cfg, deps: deps, clk: clock.New()}
	for _, opt := range opts {
		opt(r)
	}

	reqOpts := []debounce.Option{
		debounce.WithClock(r.clk),
		debounce.WithMetrics(deps.Metrics),
	}
	if cfg.ExtendOnRequest {
		reqOpts = append(reqOpts, debounce.WithExtendOnRequest())
	}
	r.cache = debounce.NewCache(cfg.IdleTimeout, func(subject types.SubjectID) *debounce.Request[types.SubjectID] {
		return debounce.NewRequest(subject, cfg.Window, r.perform, reqOpts...)
	}, debounce.WithClock(r.clk), debounce.WithMetrics(deps.Metrics))

	return r, nil
}

// Start 订阅事件并启动后台清扫
//
// 配置关闭时什么都不做。
func (r *Router) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRouterClosed
	}
	if r.started {
		return nil
	}
	if !r.cfg.Enabled {
		logger.Info("客户端视图刷新已关闭")
		return nil
	}
	if r.deps.EventBus == nil {
		return errors.New("notify: event bus is required")
	}

	d := eventbus.NewDispatcher(r.deps.EventBus)
	if err := d.On(new(types.EvtStateRecalculated), r.onStateRecalculated); err != nil {
		_ = d.Close()
		return fmt.Errorf("notify: subscribe state events: %w", err)
	}
	if err := d.On(new(types.EvtContextChanged), r.onContextChanged); err != nil {
		_ = d.Close()
		return fmt.Errorf("notify: subscribe context events: %w", err)
	}

	r.cache.Start()
	r.dispatcher = d
	r.started = true

	logger.Debug("通知路由已启动", "window", r.cfg.Window, "extend", r.cfg.ExtendOnRequest)
	return nil
}

// Close 取消订阅并停止清扫
//
// 已经安排的刷新仍会执行。
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	d := r.dispatcher
	r.dispatcher = nil
	r.mu.Unlock()

	var err error
	if d != nil {
		err = d.Close()
	}
	return multierr.Append(err, r.cache.Close())
}

// RequestUpdate 为在线主体安排一次刷新
//
// 主体不在线时丢弃并返回 nil。缓存工厂失败时返回 debounce.ErrNilEntry。
func (r *Router) RequestUpdate(subject types.SubjectID) error {
	defer r.requests.Add(1)

	if !r.deps.Transport.IsOnline(subject) {
		r.dropped.Add(1)
		logger.Debug("主体不在线，丢弃刷新请求", "subject", subject.ShortString())
		return nil
	}

	req, err := r.cache.Get(subject)
	if err != nil {
		return fmt.Errorf("notify: debouncer for %s: %w", subject.ShortString(), err)
	}
	req.Request()
	return nil
}

// Requests 返回已处理完的刷新请求数（包括丢弃的）
func (r *Router) Requests() uint64 {
	return r.requests.Load()
}

// Dropped 返回因主体不在线而丢弃的请求数
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

// Tracked 返回缓存中的主体数
func (r *Router) Tracked() int {
	return r.cache.Len()
}

// ============================================================================
//                              事件处理
// ============================================================================

func (r *Router) onStateRecalculated(evt interface{}) {
	e, ok := evt.(types.EvtStateRecalculated)
	if !ok {
		return
	}
	r.handle(e.Subject)
}

func (r *Router) onContextChanged(evt interface{}) {
	e, ok := evt.(types.EvtContextChanged)
	if !ok {
		return
	}
	conn, ok := e.Source.(interfaces.Connection)
	if !ok {
		return
	}
	r.handle(conn.Subject())
}

func (r *Router) handle(subject types.SubjectID) {
	if err := r.RequestUpdate(subject); err != nil {
		logger.Error("安排刷新失败", "subject", subject.ShortString(), "error", err)
	}
}

// perform 去抖窗口结束后执行，把刷新投递到指定执行上下文
func (r *Router) perform(subject types.SubjectID) error {
	r.deps.Scheduler.RunOnDesignated(func() {
		conn, ok := r.deps.Transport.Connection(subject)
		if !ok {
			logger.Debug("主体已离线，跳过刷新", "subject", subject.ShortString())
			return
		}
		if err := r.deps.Refresher.Refresh(conn); err != nil {
			logger.Warn("刷新客户端视图失败", "subject", subject.ShortString(), "error", err)
		}
	})
	return nil
}
