// Package main 提供 permsync 命令行入口
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions 全局参数
type rootOptions struct {
	configFile string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand 创建根命令
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "permsync",
		Short:         "permsync - 权限状态同步服务",
		Long:          "连接准入与权限视图同步服务：加载主体权限状态，并把合并后的刷新推送给在线客户端。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "配置文件路径（JSON）")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}
