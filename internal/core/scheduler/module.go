package scheduler

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

	UnifiedCfg *config.Config      `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
	Metrics    *metrics.Collectors `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Loop      *Loop
	Scheduler interfaces.Scheduler
}

// ProvideLoop 提供执行上下文
func ProvideLoop(input ModuleInput) ModuleOutput {
	opts := []Option{
		WithClock(input.Clock),
		WithMetrics(input.Metrics),
	}
	if input.UnifiedCfg != nil {
		opts = append(opts, WithTickInterval(input.UnifiedCfg.Scheduler.TickInterval.Duration()))
	}
	l := NewLoop(opts...)
	return ModuleOutput{Loop: l, Scheduler: l}
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("scheduler",
		fx.Provide(ProvideLoop),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, l *Loop) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return l.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return l.Stop()
		},
	})
}
