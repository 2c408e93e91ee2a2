package contexts

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Manager  *Manager
	Signaler interfaces.ContextSignaler
}

// ProvideManager 提供上下文管理器，默认注册语言计算器
func ProvideManager(bus interfaces.EventBus) (ModuleOutput, error) {
	m, err := NewManager(bus)
	if err != nil {
		return ModuleOutput{}, err
	}
	m.Register(LocaleCalculator)
	return ModuleOutput{Manager: m, Signaler: m}, nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("contexts",
		fx.Provide(ProvideManager),
		fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					return m.Close()
				},
			})
		}),
	)
}
