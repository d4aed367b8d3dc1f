package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions 所有子命令共用的参数
type RootOptions struct {
	ConfigDir string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "coder_edu_sync",
		Short: "CoderEdu 离线优先进度同步",
		Long: `CoderEdu 离线优先进度同步。

serve 运行学习平台同步网关（幂等 upsert 接口与离线内容下发），
agent 在客户端本机运行离线优先代理：本地进度、待同步队列与同步引擎。`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", "configs", "配置文件目录（包含 config.yaml）")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAgentCommand(opts))

	return cmd
}
