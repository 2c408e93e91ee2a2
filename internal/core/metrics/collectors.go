package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "permsync"

// 结果标签
const (
	ResultAdmitted         = "admitted"
	ResultGone             = "gone"
	ResultLoadFailed       = "load_failed"
	ResultActive           = "active"
	ResultNeverPreAdmitted = "never_pre_admitted"
	ResultStateVanished    = "state_vanished"
)

// Collectors 指标集合
type Collectors struct {
	admissions  *prometheus.CounterVec
	activations *prometheus.CounterVec

	debounceRequests    prometheus.Counter
	debounceCoalesced   prometheus.Counter
	debounceInvocations prometheus.Counter
	debounceFailures    prometheus.Counter

	cacheConstructed prometheus.Counter
	cacheEvicted     prometheus.Counter
	cacheEntries     prometheus.Gauge

	schedulerTasks  prometheus.Counter
	schedulerPanics prometheus.Counter
}

// New 创建指标集合并注册到 reg
//
// 重复注册（同一 registry 上多次创建）时复用已注册的收集器。
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_total",
			Help:      "Pre-admission outcomes by result.",
		}, []string{"result"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activation_total",
			Help:      "Activation validation outcomes by result.",
		}, []string{"result"}),
		debounceRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "requests_total",
			Help:      "Debounce requests received.",
		}),
		debounceCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "coalesced_total",
			Help:      "Debounce requests merged into an already scheduled invocation.",
		}),
		debounceInvocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "invocations_total",
			Help:      "Debounced actions performed.",
		}),
		debounceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "failures_total",
			Help:      "Debounced actions that returned an error or panicked.",
		}),
		cacheConstructed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "cache_constructed_total",
			Help:      "Debounce cache entries constructed.",
		}),
		cacheEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "cache_evicted_total",
			Help:      "Debounce cache entries evicted after the idle timeout.",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "debounce",
			Name:      "cache_entries",
			Help:      "Live debounce cache entries.",
		}),
		schedulerTasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Tasks run on the designated executor.",
		}),
		schedulerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "panics_total",
			Help:      "Tasks on the designated executor that panicked.",
		}),
	}

	if reg == nil {
		return c, nil
	}

	c.admissions = register(reg, c.admissions)
	c.activations = register(reg, c.activations)
	c.debounceRequests = register(reg, c.debounceRequests)
	c.debounceCoalesced = register(reg, c.debounceCoalesced)
	c.debounceInvocations = register(reg, c.debounceInvocations)
	c.debounceFailures = register(reg, c.debounceFailures)
	c.cacheConstructed = register(reg, c.cacheConstructed)
	c.cacheEvicted = register(reg, c.cacheEvicted)
	c.cacheEntries = register(reg, c.cacheEntries)
	c.schedulerTasks = register(reg, c.schedulerTasks)
	c.schedulerPanics = register(reg, c.schedulerPanics)

	return c, nil
}

// register 注册收集器，已注册时返回已有实例
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		logger.Warn("注册指标失败", "error", err)
	}
	return c
}

// ============================================================================
//                              准入
// ============================================================================

// Admission 记录预登录结果
func (c *Collectors) Admission(result string) {
	if c == nil {
		return
	}
	c.admissions.WithLabelValues(result).Inc()
}

// Activation 记录激活校验结果
func (c *Collectors) Activation(result string) {
	if c == nil {
		return
	}
	c.activations.WithLabelValues(result).Inc()
}

// ============================================================================
//                              去抖
// ============================================================================

// DebounceRequested 记录一次去抖请求；coalesced 表示被合并
func (c *Collectors) DebounceRequested(coalesced bool) {
	if c == nil {
		return
	}
	c.debounceRequests.Inc()
	if coalesced {
		c.debounceCoalesced.Inc()
	}
}

// DebounceInvoked 记录一次执行；failed 表示返回错误或 panic
func (c *Collectors) DebounceInvoked(failed bool) {
	if c == nil {
		return
	}
	c.debounceInvocations.Inc()
	if failed {
		c.debounceFailures.Inc()
	}
}

// CacheConstructed 记录缓存条目构造
func (c *Collectors) CacheConstructed() {
	if c == nil {
		return
	}
	c.cacheConstructed.Inc()
	c.cacheEntries.Inc()
}

// CacheEvicted 记录 n 个缓存条目被驱逐
func (c *Collectors) CacheEvicted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.cacheEvicted.Add(float64(n))
	c.cacheEntries.Sub(float64(n))
}

// ============================================================================
//                              调度器
// ============================================================================

// TaskRun 记录指定执行上下文中的一次任务；panicked 表示任务 panic
func (c *Collectors) TaskRun(panicked bool) {
	if c == nil {
		return
	}
	c.schedulerTasks.Inc()
	if panicked {
		c.schedulerPanics.Inc()
	}
}
