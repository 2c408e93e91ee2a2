package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	permsync "github.com/dep2p/go-permsync"
	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/internal/util/logger"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var cmdLogger = log.Logger("permsync/cmd")

// shutdownTimeout 收到退出信号后的停止超时
const shutdownTimeout = 15 * time.Second

// serveOptions serve 命令参数
type serveOptions struct {
	*rootOptions

	// 运行时覆盖
	listen   string
	dataDir  string
	inMemory bool
}

// newServeCommand 创建 serve 命令
func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动同步服务",
		Long: `启动 WebSocket 同步服务。

配置按 默认值 → --config 文件 → PERMSYNC_ 环境变量 → 命令行参数 的顺序叠加。

示例:
  permsync serve --listen 0.0.0.0:7480
  permsync serve --config ./permsync.json --in-memory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("配置错误: %w", err)
			}
			setupLogging(cfg)
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "监听地址（覆盖配置）")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "数据目录（覆盖配置）")
	cmd.Flags().BoolVar(&opts.inMemory, "in-memory", false, "使用内存存储")

	return cmd
}

// loadConfig 加载配置并应用命令行覆盖
func (o *serveOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.listen != "" {
		cfg.Host.Listen = o.listen
	}
	if o.dataDir != "" {
		cfg.Storage.DataDir = o.dataDir
	}
	if o.inMemory {
		cfg.Storage.InMemory = true
	}
	return cfg, cfg.Validate()
}

// setupLogging 按配置安装默认日志 handler
//
// PERMSYNC_LOG_LEVEL 使用 组件=级别 语法，例如 notify=debug,info。
func setupLogging(cfg *config.Config) {
	lc := logger.DefaultConfig()
	logger.ParseLevelSpec(lc, cfg.Log.Level)
	lc.Format = logger.ParseFormat(cfg.Log.Format)
	logger.Setup(os.Stderr, lc)
}

// serve 启动节点并阻塞到收到退出信号
func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node, err := permsync.Start(ctx, permsync.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	cmdLogger.Info("服务已启动", "addr", node.Addr(), "version", permsync.Version)
	<-ctx.Done()
	cmdLogger.Info("收到退出信号，正在停止")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return node.Stop(stopCtx)
}
