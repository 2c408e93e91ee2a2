package debounce

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-permsync/internal/core/metrics"
)

// Option Request 与 Cache 共用的选项
type Option func(*options)

type options struct {
	clk           clock.Clock
	extend        bool
	metrics       *metrics.Collectors
	sweepInterval time.Duration
}

func newOptions(opts []Option) options {
	o := options{clk: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock 设置时钟（测试使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clk = clk
		}
	}
}

// WithExtendOnRequest 切换为尾沿模式：每次请求把截止时间推到 now+T
func WithExtendOnRequest() Option {
	return func(o *options) {
		o.extend = true
	}
}

// WithMetrics 设置指标收集器，nil 表示不记录
func WithMetrics(m *metrics.Collectors) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSweepInterval 设置后台清扫间隔，默认等于空闲超时
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
	}
}
