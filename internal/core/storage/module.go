package storage

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/internal/core/storage/engine"
	"github.com/dep2p/go-permsync/internal/core/storage/engine/badger"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var logger = log.Logger("core/storage")

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// Result Storage 模块提供的结果
type Result struct {
	fx.Out

	Engine     engine.Engine
	Repository *Repository
}

// Module 返回 Storage Fx 模块
//
// 提供:
//   - engine.Engine: 存储引擎实例
//   - *Repository: 用户记录仓库
//
// 生命周期:
//   - OnStart: 启动引擎（GC 等后台任务）
//   - OnStop: 关闭引擎
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideStorage),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStorage 提供存储引擎和仓库
func ProvideStorage(p Params) (Result, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)

	eng, err := NewEngine(cfg)
	if err != nil {
		return Result{}, err
	}
	repo, err := NewRepository(eng, cfg, p.Clock)
	if err != nil {
		return Result{}, multierr.Append(err, eng.Close())
	}
	return Result{Engine: eng, Repository: repo}, nil
}

// NewEngine 根据配置创建存储引擎
func NewEngine(cfg Config) (engine.Engine, error) {
	logger.Debug("创建存储引擎", "path", cfg.Path, "inMemory", cfg.InMemory)
	eng, err := badger.New(cfg.ToEngineConfig())
	if err != nil {
		logger.Error("创建存储引擎失败", "error", err)
		return nil, err
	}
	return eng, nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, eng engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := eng.Start(); err != nil {
				logger.Error("存储引擎启动失败", "error", err)
				return err
			}
			logger.Info("存储引擎启动成功")
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := eng.Close(); err != nil {
				logger.Warn("存储引擎关闭失败", "error", err)
				return err
			}
			logger.Info("存储引擎已关闭")
			return nil
		},
	})
}
