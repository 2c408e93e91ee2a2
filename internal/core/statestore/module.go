package statestore

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/internal/core/storage"
	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	Repository *storage.Repository
	EventBus   interfaces.EventBus
	Transport  interfaces.Transport `optional:"true"`
	UnifiedCfg *config.Config       `optional:"true"`
	Clock      clock.Clock          `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Store      *Store
	StateStore interfaces.StateStore
}

// ProvideStore 提供状态存储
func ProvideStore(input ModuleInput) (ModuleOutput, error) {
	opts := []Option{
		WithClock(input.Clock),
		WithTransport(input.Transport),
	}
	if input.UnifiedCfg != nil {
		opts = append(opts, WithUnloadDelay(input.UnifiedCfg.State.UnloadDelay.Duration()))
	}
	s, err := New(input.Repository, input.EventBus, opts...)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Store: s, StateStore: s}, nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("statestore",
		fx.Provide(ProvideStore),
		fx.Invoke(func(lc fx.Lifecycle, s *Store) {
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					return s.Close()
				},
			})
		}),
	)
}
