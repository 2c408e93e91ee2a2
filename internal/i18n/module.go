package i18n

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// Module 返回 fx 模块，提供内置目录
func Module() fx.Option {
	return fx.Module("i18n",
		fx.Provide(
			LoadEmbedded,
			func(c *Catalog) interfaces.Localizer { return c },
		),
	)
}
