package main

import (
	"fmt"

	"github.com/spf13/cobra"

	permsync "github.com/dep2p/go-permsync"
)

// newVersionCommand 创建 version 命令
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "permsync %s\n", permsync.Version)
			if permsync.GitCommit != "" {
				fmt.Fprintf(out, "  commit: %s\n", permsync.GitCommit)
			}
			if permsync.BuildDate != "" {
				fmt.Fprintf(out, "  built:  %s\n", permsync.BuildDate)
			}
			return nil
		},
	}
}
