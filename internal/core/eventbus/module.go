package eventbus

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// Module 返回 fx 模块
//
// 提供：
//   - interfaces.EventBus
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(
			fx.Annotate(
				NewBus,
				fx.As(new(interfaces.EventBus)),
			),
		),
	)
}
