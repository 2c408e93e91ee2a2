package permsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/internal/admission"
	"github.com/dep2p/go-permsync/internal/core/connmgr"
	"github.com/dep2p/go-permsync/internal/core/contexts"
	"github.com/dep2p/go-permsync/internal/core/lifecycle"
	"github.com/dep2p/go-permsync/internal/core/statestore"
	"github.com/dep2p/go-permsync/internal/host/wshost"
	"github.com/dep2p/go-permsync/internal/notify"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var logger = log.Logger("permsync")

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期常量
// ════════════════════════════════════════════════════════════════════════════

const (
	// initializeTimeout 初始化超时（Fx App Start）
	initializeTimeout = 30 * time.Second

	// closeTimeout Close 使用的停止超时
	closeTimeout = 10 * time.Second
)

// Node 权限同步服务节点
//
// Node 持有 Fx 应用，Start 启动所有组件并把生命周期推进到 Enabled，
// 此后等待就绪的预准入请求才会继续。
type Node struct {
	config *nodeConfig
	app    *fx.App

	mu      sync.Mutex
	started bool
	closed  bool

	// 由 Fx 注入
	coordinator *lifecycle.Coordinator
	conns       *connmgr.Manager
	store       *statestore.Store
	contexts    *contexts.Manager
	pipeline    *admission.Pipeline
	router      *notify.Router
	server      *wshost.Server
}

// New 创建节点（不启动）
func New(opts ...Option) (*Node, error) {
	cfg := newNodeConfig()
	if err := cfg.apply(opts...); err != nil {
		return nil, fmt.Errorf("apply options: %w", err)
	}

	node := &Node{config: cfg}

	app, err := buildFxApp(cfg, node)
	if err != nil {
		return nil, err
	}
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	node.app = app

	return node, nil
}

// Start 创建并启动节点
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期管理
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
//
// 启动 Fx 应用（各模块 OnStart），全部成功后标记进程就绪。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	logger.Info("正在启动节点", "version", Version)

	initCtx, initCancel := context.WithTimeout(ctx, initializeTimeout)
	defer initCancel()

	if err := n.app.Start(initCtx); err != nil {
		logger.Error("节点启动失败", "error", err)
		return fmt.Errorf("initialize failed: %w", err)
	}

	n.coordinator.MarkReady()
	n.started = true

	logger.Info("节点已就绪", "addr", n.server.Addr())
	return nil
}

// Stop 停止节点
//
// 依次推进到 Disabling 并停止 Fx 应用。停止后节点不可再次启动。
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	if !n.started {
		return ErrNotStarted
	}
	n.closed = true

	logger.Info("正在停止节点")

	var err error
	if n.coordinator.Phase() < lifecycle.PhaseDisabling {
		err = multierr.Append(err, n.coordinator.AdvanceTo(lifecycle.PhaseDisabling))
	}
	err = multierr.Append(err, n.app.Stop(ctx))
	if err != nil {
		logger.Warn("节点停止时出现错误", "error", err)
		return err
	}

	logger.Info("节点已停止")
	return nil
}

// Close 以默认超时停止节点
//
// 未启动的节点直接标记为关闭。
func (n *Node) Close() error {
	n.mu.Lock()
	if !n.started {
		n.closed = true
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return n.Stop(ctx)
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件访问
// ════════════════════════════════════════════════════════════════════════════

// Config 返回节点使用的配置
func (n *Node) Config() *config.Config {
	return n.config.config
}

// Addr 返回 WebSocket 实际监听地址，未启动时为空
func (n *Node) Addr() string {
	if n.server == nil {
		return ""
	}
	return n.server.Addr()
}

// Lifecycle 返回生命周期协调器
func (n *Node) Lifecycle() *lifecycle.Coordinator {
	return n.coordinator
}

// Connections 返回连接注册表
func (n *Node) Connections() *connmgr.Manager {
	return n.conns
}

// StateStore 返回权限状态缓存
func (n *Node) StateStore() *statestore.Store {
	return n.store
}

// Contexts 返回上下文管理器
func (n *Node) Contexts() *contexts.Manager {
	return n.contexts
}

// Pipeline 返回准入管道
func (n *Node) Pipeline() *admission.Pipeline {
	return n.pipeline
}

// Router 返回通知路由
func (n *Node) Router() *notify.Router {
	return n.router
}
