package cli

import (
	"coder_edu_sync/internal/app"
	"coder_edu_sync/internal/config"
	"coder_edu_sync/pkg/configwatcher"
	"coder_edu_sync/pkg/logger"
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type ServeOptions struct {
	*RootOptions
	Migrate     bool
	MigrateOnly bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "运行同步网关",
		Example: `  coder_edu_sync serve --config ./configs
  coder_edu_sync serve --migrate-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	cmd.Flags().BoolVar(&opts.MigrateOnly, "migrate-only", false, "只执行数据库迁移，完成后退出")

	return cmd
}

func runServe(parent context.Context, opts *ServeOptions) error {
	cfg, err := config.LoadConfig(opts.ConfigDir)
	if err != nil {
		return err
	}
	cfg.ForceMigrate = opts.Migrate || opts.MigrateOnly
	cfg.MigrateOnly = opts.MigrateOnly

	application, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if opts.MigrateOnly {
		logger.Log.Info("Database migration finished, exiting")
		return nil
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watchConfig(ctx, opts.ConfigDir, application.ApplyConfig)

	return application.Run(ctx)
}

func watchConfig(ctx context.Context, configDir string, reloader configwatcher.ConfigReloader) {
	configFile := filepath.Join(configDir, "config.yaml")
	if err := configwatcher.WatchConfig(ctx, configFile, 500*time.Millisecond, reloader); err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
}
