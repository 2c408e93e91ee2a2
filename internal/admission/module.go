package admission

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/internal/core/metrics"
	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`

	Gate      interfaces.ReadinessGate `optional:"true"`
	Transport interfaces.Transport
	Store     interfaces.StateStore
	Scheduler interfaces.Scheduler       `optional:"true"`
	Contexts  interfaces.ContextSignaler `optional:"true"`
	Localizer interfaces.Localizer       `optional:"true"`
	EventBus  interfaces.EventBus        `optional:"true"`
	Metrics   *metrics.Collectors        `optional:"true"`
}

// ConfigFromUnified 从统一配置生成流水线配置
func ConfigFromUnified(cfg *config.Config) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	out.ReadyTimeout = cfg.Admission.ReadyTimeout.Duration()
	out.DebugLogins = cfg.Admission.DebugLogins
	return out
}

// ProvidePipeline 提供准入流水线
func ProvidePipeline(input ModuleInput) (*Pipeline, error) {
	return New(ConfigFromUnified(input.UnifiedCfg), Dependencies{
		Gate:      input.Gate,
		Transport: input.Transport,
		Store:     input.Store,
		Scheduler: input.Scheduler,
		Contexts:  input.Contexts,
		Localizer: input.Localizer,
		EventBus:  input.EventBus,
		Metrics:   input.Metrics,
	})
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("admission",
		fx.Provide(ProvidePipeline),
		fx.Invoke(func(lc fx.Lifecycle, p *Pipeline) {
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					return p.Close()
				},
			})
		}),
	)
}
