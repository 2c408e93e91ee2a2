package permsync

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/config"
)

// Option 节点配置选项
type Option func(*nodeConfig) error

// nodeConfig 节点内部配置
type nodeConfig struct {
	config *config.Config

	// clock 注入的时钟，nil 时各组件使用真实时钟
	clock clock.Clock

	// registry 指标注册表，nil 时使用 prometheus 默认注册表
	registry *prometheus.Registry

	// userFxOptions 用户自定义的 Fx 选项
	userFxOptions []fx.Option
}

func newNodeConfig() *nodeConfig {
	return &nodeConfig{config: config.NewConfig()}
}

func (c *nodeConfig) apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置
//
// 后续选项在此配置之上修改。
func WithConfig(cfg *config.Config) Option {
	return func(c *nodeConfig) error {
		if cfg == nil {
			return ErrNilConfig
		}
		c.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置（叠加环境变量）
func WithConfigFile(path string) Option {
	return func(c *nodeConfig) error {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		c.config = cfg
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              常用覆盖
// ════════════════════════════════════════════════════════════════════════════

// WithListen 设置 WebSocket 监听地址
func WithListen(addr string) Option {
	return func(c *nodeConfig) error {
		if addr == "" {
			return fmt.Errorf("%w: empty listen address", ErrInvalidOption)
		}
		c.config.Host.Listen = addr
		return nil
	}
}

// WithInMemoryStorage 使用内存存储（数据不落盘）
func WithInMemoryStorage() Option {
	return func(c *nodeConfig) error {
		c.config.Storage.InMemory = true
		return nil
	}
}

// WithDebounceWindow 设置通知去抖窗口
func WithDebounceWindow(d time.Duration) Option {
	return func(c *nodeConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: debounce window must be positive", ErrInvalidOption)
		}
		c.config.Debounce.Window = config.Duration(d)
		return nil
	}
}

// WithClock 注入时钟（测试使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(c *nodeConfig) error {
		c.clock = clk
		return nil
	}
}

// WithRegistry 使用独立的指标注册表
//
// 注册表同时作为 /metrics 端点的 Gatherer。
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *nodeConfig) error {
		c.registry = reg
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(c *nodeConfig) error {
		c.userFxOptions = append(c.userFxOptions, opts...)
		return nil
	}
}
