package wshost

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/internal/admission"
	"github.com/dep2p/go-permsync/internal/core/connmgr"
	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`

	Pipeline  *admission.Pipeline
	Manager   *connmgr.Manager
	Localizer interfaces.Localizer `optional:"true"`
	Gatherer  prometheus.Gatherer  `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Server    *Server
	Refresher interfaces.Refresher
}

// ConfigFromUnified 从统一配置生成宿主配置
func ConfigFromUnified(cfg *config.Config) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	out.Listen = cfg.Host.Listen
	out.PingInterval = cfg.Host.PingInterval.Duration()
	out.WriteTimeout = cfg.Host.WriteTimeout.Duration()
	out.MetricsPath = ""
	if cfg.Metrics.Enabled {
		out.MetricsPath = cfg.Metrics.Path
	}
	return out
}

// ProvideServer 提供 WebSocket 宿主
func ProvideServer(input ModuleInput) ModuleOutput {
	gatherer := input.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := New(ConfigFromUnified(input.UnifiedCfg), input.Pipeline, input.Manager,
		WithLocalizer(input.Localizer),
		WithGatherer(gatherer),
	)
	return ModuleOutput{Server: s, Refresher: s}
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("wshost",
		fx.Provide(ProvideServer),
		fx.Invoke(func(lc fx.Lifecycle, s *Server) {
			lc.Append(fx.Hook{
				OnStart: s.Start,
				OnStop:  s.Stop,
			})
		}),
	)
}
