package permsync

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/pkg/lib/log"

	// Core Layer
	"github.com/dep2p/go-permsync/internal/core/connmgr"
	"github.com/dep2p/go-permsync/internal/core/contexts"
	"github.com/dep2p/go-permsync/internal/core/eventbus"
	"github.com/dep2p/go-permsync/internal/core/lifecycle"
	"github.com/dep2p/go-permsync/internal/core/metrics"
	"github.com/dep2p/go-permsync/internal/core/scheduler"
	"github.com/dep2p/go-permsync/internal/core/statestore"
	"github.com/dep2p/go-permsync/internal/core/storage"

	// Service Layer
	"github.com/dep2p/go-permsync/internal/admission"
	"github.com/dep2p/go-permsync/internal/host/wshost"
	"github.com/dep2p/go-permsync/internal/i18n"
	"github.com/dep2p/go-permsync/internal/notify"
)

var fxLogger = log.Logger("permsync/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序决定生命周期钩子的顺序（停止时逆序）：
//  1. Core Layer: Lifecycle → EventBus → Metrics → Scheduler → Storage → ConnMgr → StateStore → Contexts
//  2. Service Layer: I18n → Admission → Notify → WSHost
//
// WSHost 最后启动、最先停止，停止时先断开客户端，再关闭通知路由与状态缓存。
func buildFxApp(cfg *nodeConfig, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础注入
	// ════════════════════════════════════════════════════════════════════════
	options := []fx.Option{
		fx.Supply(cfg.config),
	}

	if cfg.clock != nil {
		clk := cfg.clock
		options = append(options, fx.Provide(func() clock.Clock { return clk }))
	}

	if cfg.registry != nil {
		reg := cfg.registry
		options = append(options, fx.Provide(
			func() prometheus.Registerer { return reg },
			func() prometheus.Gatherer { return reg },
		))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. Core Layer
	// ════════════════════════════════════════════════════════════════════════
	options = append(options,
		lifecycle.Module(),
		eventbus.Module(),
		metrics.Module(),
		scheduler.Module(),
		storage.Module(),
		connmgr.Module(),
		statestore.Module(),
		contexts.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. Service Layer
	// ════════════════════════════════════════════════════════════════════════
	options = append(options,
		i18n.Module(),
		admission.Module(),
		notify.Module(),
		wshost.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户自定义选项与组件注入
	// ════════════════════════════════════════════════════════════════════════
	options = append(options, cfg.userFxOptions...)
	options = append(options,
		fx.Invoke(func(params nodeParams) {
			injectNodeComponents(node, params)
		}),
		fx.WithLogger(fxEventLogger(cfg.config)),
	)

	fxLogger.Debug("Fx 应用组装完成", "options", len(options))
	return fx.New(options...), nil
}

// fxEventLogger 返回 Fx 事件日志器
//
// 默认静默；开启 log.fx_debug 时输出 Fx 的依赖注入过程。
func fxEventLogger(cfg *config.Config) func() fxevent.Logger {
	return func() fxevent.Logger {
		if cfg.Log.FxDebug {
			if l, err := zap.NewDevelopment(); err == nil {
				return &fxevent.ZapLogger{Logger: l}
			}
		}
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}
}

// nodeParams 注入到 Node 的组件
type nodeParams struct {
	fx.In

	Coordinator *lifecycle.Coordinator
	Manager     *connmgr.Manager
	Store       *statestore.Store
	Contexts    *contexts.Manager
	Pipeline    *admission.Pipeline
	Router      *notify.Router
	Server      *wshost.Server
}

// injectNodeComponents 将组件注入到 Node
func injectNodeComponents(node *Node, params nodeParams) {
	node.coordinator = params.Coordinator
	node.conns = params.Manager
	node.store = params.Store
	node.contexts = params.Contexts
	node.pipeline = params.Pipeline
	node.router = params.Router
	node.server = params.Server
}
