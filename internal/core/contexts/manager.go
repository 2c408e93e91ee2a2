package contexts

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
	"github.com/dep2p/go-permsync/pkg/types"
)

var logger = log.Logger("core/contexts")

const (
	// DefaultCacheTTL 上下文缓存有效期
	DefaultCacheTTL = 50 * time.Millisecond

	// DefaultCacheSize 缓存的主体数上限
	DefaultCacheSize = 4096

	// KeyLocale 语言上下文键
	KeyLocale = "locale"
)

// Calculator 上下文计算器
type Calculator interface {
	Calculate(conn interfaces.Connection, acc *Set)
}

// CalculatorFunc 函数适配器
type CalculatorFunc func(conn interfaces.Connection, acc *Set)

// Calculate 实现 Calculator
func (f CalculatorFunc) Calculate(conn interfaces.Connection, acc *Set) {
	f(conn, acc)
}

// LocaleCalculator 以连接语言作为上下文
var LocaleCalculator = CalculatorFunc(func(conn interfaces.Connection, acc *Set) {
	acc.Add(KeyLocale, conn.Locale())
})

// Manager 上下文管理器
type Manager struct {
	emitter interfaces.Emitter
	cache   *expirable.LRU[types.SubjectID, *Set]

	mu          sync.RWMutex
	calculators []Calculator
}

var _ interfaces.ContextSignaler = (*Manager)(nil)

// Option 选项
type Option func(*managerOptions)

type managerOptions struct {
	ttl  time.Duration
	size int
}

// WithCacheTTL 设置缓存有效期
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *managerOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithCacheSize 设置缓存容量
func WithCacheSize(size int) Option {
	return func(o *managerOptions) {
		if size > 0 {
			o.size = size
		}
	}
}

// NewManager 创建上下文管理器
//
// bus 为 nil 时 SignalContextUpdate 只使缓存失效。
func NewManager(bus interfaces.EventBus, opts ...Option) (*Manager, error) {
	o := managerOptions{ttl: DefaultCacheTTL, size: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		cache: expirable.NewLRU[types.SubjectID, *Set](o.size, nil, o.ttl),
	}
	if bus != nil {
		em, err := bus.Emitter(new(types.EvtContextChanged))
		if err != nil {
			return nil, fmt.Errorf("contexts: create emitter: %w", err)
		}
		m.emitter = em
	}
	return m, nil
}

// Register 注册计算器
func (m *Manager) Register(calc Calculator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calculators = append(m.calculators, calc)
}

// Get 返回连接主体的上下文集合
//
// 返回的集合由缓存共享，调用方不得修改。
func (m *Manager) Get(conn interfaces.Connection) *Set {
	subject := conn.Subject()
	if set, ok := m.cache.Get(subject); ok {
		return set
	}
	set := m.calculate(conn)
	m.cache.Add(subject, set)
	return set
}

// Cached 主体是否有缓存的上下文
func (m *Manager) Cached(subject types.SubjectID) bool {
	return m.cache.Contains(subject)
}

// SignalContextUpdate 实现 ContextSignaler
func (m *Manager) SignalContextUpdate(conn interfaces.Connection) {
	m.cache.Remove(conn.Subject())
	if m.emitter == nil {
		return
	}
	if err := m.emitter.Emit(types.EvtContextChanged{Source: conn}); err != nil {
		logger.Debug("发射上下文变更事件失败", "subject", conn.Subject().ShortString(), "error", err)
	}
}

// OnQuit 实现 ContextSignaler
func (m *Manager) OnQuit(subject types.SubjectID) {
	m.cache.Remove(subject)
}

// Close 关闭发射器并清空缓存
func (m *Manager) Close() error {
	m.cache.Purge()
	if m.emitter != nil {
		return m.emitter.Close()
	}
	return nil
}

func (m *Manager) calculate(conn interfaces.Connection) *Set {
	m.mu.RLock()
	calcs := m.calculators
	m.mu.RUnlock()

	set := NewSet()
	for _, calc := range calcs {
		m.runCalculator(calc, conn, set)
	}
	return set
}

func (m *Manager) runCalculator(calc Calculator, conn interfaces.Connection, set *Set) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("上下文计算器 panic", "subject", conn.Subject().ShortString(), "panic", r)
		}
	}()
	calc.Calculate(conn, set)
}
