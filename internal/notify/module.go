package notify

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/internal/core/metrics"
	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`

	Transport interfaces.Transport
	Scheduler interfaces.Scheduler
	Refresher interfaces.Refresher
	EventBus  interfaces.EventBus
	Metrics   *metrics.Collectors `optional:"true"`
}

// ConfigFromUnified 从统一配置生成路由配置
func ConfigFromUnified(cfg *config.Config) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	out.Enabled = cfg.Notify.UpdateClientView
	out.Window = cfg.Debounce.Window.Duration()
	out.IdleTimeout = cfg.Debounce.IdleTimeout.Duration()
	out.ExtendOnRequest = cfg.Debounce.ExtendOnRequest
	return out
}

// ProvideRouter 提供通知路由
func ProvideRouter(input ModuleInput) (*Router, error) {
	return New(ConfigFromUnified(input.UnifiedCfg), Dependencies{
		Transport: input.Transport,
		Scheduler: input.Scheduler,
		Refresher: input.Refresher,
		EventBus:  input.EventBus,
		Metrics:   input.Metrics,
	}, WithClock(input.Clock))
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(ProvideRouter),
		fx.Invoke(func(lc fx.Lifecycle, r *Router) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					return r.Start()
				},
				OnStop: func(_ context.Context) error {
					return r.Close()
				},
			})
		}),
	)
}
