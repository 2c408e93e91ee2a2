package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config        `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Module 返回 fx 模块
//
// 指标关闭时提供 nil *Collectors，所有记录方法对 nil 安全。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(NewFromParams),
	)
}

// NewFromParams 从参数创建指标集合
func NewFromParams(p Params) (*Collectors, error) {
	if p.UnifiedCfg != nil && !p.UnifiedCfg.Metrics.Enabled {
		return nil, nil
	}
	reg := p.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return New(reg)
}
