package lifecycle

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	Clock clock.Clock `optional:"true"`
}

// ModuleResult Fx 模块导出结果
type ModuleResult struct {
	fx.Out

	Coordinator *Coordinator
	Gate        interfaces.ReadinessGate
}

// provideCoordinator 提供 Coordinator 实例
func provideCoordinator(input ModuleInput) ModuleResult {
	var opts []Option
	if input.Clock != nil {
		opts = append(opts, WithClock(input.Clock))
	}
	c := NewCoordinator(opts...)
	return ModuleResult{
		Coordinator: c,
		Gate:        c,
	}
}

// Module 返回 Fx 模块
//
// 提供生命周期协调器作为全局单例，同时以 interfaces.ReadinessGate 导出。
// 启动时推进到 Enabling；Enabled 由上层在所有组件启动完成后标记。
func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(
			provideCoordinator,
		),
		fx.Invoke(registerLifecycleHooks),
	)
}

// lifecycleHooksParams 生命周期钩子参数
type lifecycleHooksParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Coordinator *Coordinator
}

// registerLifecycleHooks 注册生命周期钩子
func registerLifecycleHooks(params lifecycleHooksParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return params.Coordinator.AdvanceTo(PhaseEnabling)
		},
		OnStop: func(_ context.Context) error {
			err := params.Coordinator.AdvanceTo(PhaseDisabled)
			params.Coordinator.Stop()
			return err
		},
	})
}
