package cli

import (
	"coder_edu_sync/internal/app"
	"coder_edu_sync/internal/config"
	"coder_edu_sync/pkg/logger"
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type AgentOptions struct {
	*RootOptions
	Online    bool
	Listen    string
	ServerURL string
}

func NewAgentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AgentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "运行离线优先客户端代理",
		Long: `在本机运行离线优先代理。

所有修改先写入本地状态并立即可见，再进入待同步队列；
网关可达时同步引擎按入队顺序逐条送达。`,
		Example: `  coder_edu_sync agent --online
  coder_edu_sync agent --server http://gateway:8080 --listen 127.0.0.1:8787`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Online, "online", false, "启动时即认为网关可达")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "本地 API 监听地址（覆盖 agent.listen）")
	cmd.Flags().StringVar(&opts.ServerURL, "server", "", "网关地址（覆盖 agent.server_url）")

	return cmd
}

func runAgent(parent context.Context, opts *AgentOptions, cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(opts.ConfigDir)
	if err != nil {
		return err
	}
	applyAgentFlags(cfg, opts, cmd)

	agent, err := app.NewAgent(cfg)
	if err != nil {
		return err
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watchConfig(ctx, opts.ConfigDir, agent.ApplyConfig)

	return agent.Run(ctx)
}

// applyAgentFlags 只覆盖命令行上显式给出的参数
func applyAgentFlags(cfg *config.Config, opts *AgentOptions, cmd *cobra.Command) {
	if cmd.Flags().Changed("online") {
		cfg.Agent.StartOnline = opts.Online
	}
	if opts.Listen != "" {
		cfg.Agent.Listen = opts.Listen
	}
	if opts.ServerURL != "" {
		cfg.Agent.ServerURL = opts.ServerURL
	}
}
