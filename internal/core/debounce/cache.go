package debounce

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-permsync/internal/core/metrics"
)

// DefaultIdleTimeout 默认空闲超时
const DefaultIdleTimeout = 10 * time.Second

// Factory 为键构造缓存值
//
// 在缓存锁内调用，不得回调同一个 Cache。
type Factory[K comparable, V any] func(key K) V

// Cache 按键懒构造、空闲驱逐的缓存
type Cache[K comparable, V any] struct {
	factory Factory[K, V]
	idle    time.Duration

	clk           clock.Clock
	metrics       *metrics.Collectors
	sweepInterval time.Duration

	mu        sync.Mutex
	entries   map[K]*cacheEntry[V]
	lastSweep time.Time
	closed    bool

	constructed atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type cacheEntry[V any] struct {
	value      V
	lastAccess time.Time
}

// pendingValue 可以报告是否仍有待执行调用的值
type pendingValue interface {
	Pending() bool
}

// expired 超过空闲时间且没有待执行调用
//
// 待执行的条目保留到调用完成，同一键不会同时存在两个待执行的去抖器。
func (c *Cache[K, V]) expired(e *cacheEntry[V], now time.Time) bool {
	if now.Sub(e.lastAccess) < c.idle {
		return false
	}
	if p, ok := any(e.value).(pendingValue); ok && p.Pending() {
		return false
	}
	return true
}

// NewCache 创建缓存
//
// idle <= 0 时使用 DefaultIdleTimeout。
func NewCache[K comparable, V any](idle time.Duration, factory Factory[K, V], opts ...Option) *Cache[K, V] {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	o := newOptions(opts)
	sweep := o.sweepInterval
	if sweep <= 0 {
		sweep = idle
	}
	return &Cache[K, V]{
		factory:       factory,
		idle:          idle,
		clk:           o.clk,
		metrics:       o.metrics,
		sweepInterval: sweep,
		entries:       make(map[K]*cacheEntry[V]),
		lastSweep:     o.clk.Now(),
		done:          make(chan struct{}),
	}
}

// Get 返回键对应的值，不存在或已过期时构造新值
//
// 并发首次访问只构造一次。每次 Get 都刷新该键的空闲计时。
// 值实现 Pending() bool 且仍在等待时不视为过期。
func (c *Cache[K, V]) Get(key K) (V, error) {
	var zero V
	var zeroKey K
	if key == zeroKey {
		return zero, ErrZeroKey
	}

	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return zero, ErrCacheClosed
	}

	if now.Sub(c.lastSweep) >= c.sweepInterval {
		c.sweepLocked(now)
	}

	if e, ok := c.entries[key]; ok {
		if !c.expired(e, now) {
			e.lastAccess = now
			return e.value, nil
		}
		delete(c.entries, key)
		c.metrics.CacheEvicted(1)
	}

	v := c.factory(key)
	if isNil(v) {
		logger.Error("缓存工厂返回空条目", "key", key)
		return zero, ErrNilEntry
	}

	c.entries[key] = &cacheEntry[V]{value: v, lastAccess: now}
	c.constructed.Add(1)
	c.metrics.CacheConstructed()
	return v, nil
}

// Peek 返回未过期的值，不刷新空闲计时也不构造
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e, now) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Len 返回当前条目数（含尚未清扫的过期条目）
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Constructed 返回累计构造次数
func (c *Cache[K, V]) Constructed() int64 {
	return c.constructed.Load()
}

// Sweep 立即清扫过期条目，返回驱逐数量
func (c *Cache[K, V]) Sweep() int {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(now)
}

func (c *Cache[K, V]) sweepLocked(now time.Time) int {
	c.lastSweep = now

	evicted := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			evicted++
		}
	}
	if evicted > 0 {
		c.metrics.CacheEvicted(evicted)
		logger.Debug("清扫空闲条目", "evicted", evicted, "remaining", len(c.entries))
	}
	return evicted
}

// Start 启动后台清扫
func (c *Cache[K, V]) Start() {
	c.startOnce.Do(func() {
		ticker := c.clk.Ticker(c.sweepInterval)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.Sweep()
				case <-c.done:
					return
				}
			}
		}()
	})
}

// Close 停止后台清扫并清空缓存
//
// 已安排的去抖调用不受影响，仍会执行。
func (c *Cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		c.mu.Lock()
		c.closed = true
		c.entries = make(map[K]*cacheEntry[V])
		c.mu.Unlock()
	})
	return nil
}

// isNil 判断工厂返回值是否为空
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
