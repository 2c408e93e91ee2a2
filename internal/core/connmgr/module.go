package connmgr

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// ShutdownMessage 关闭时踢出连接使用的消息
const ShutdownMessage = "server shutting down"

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	Clock clock.Clock `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Manager   *Manager
	Transport interfaces.Transport
}

// ProvideManager 提供连接注册表
func ProvideManager(input ModuleInput) ModuleOutput {
	m := New(WithClock(input.Clock))
	return ModuleOutput{Manager: m, Transport: m}
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("connmgr",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// registerLifecycle 注册生命周期
func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return m.Close(ShutdownMessage)
		},
	})
}
