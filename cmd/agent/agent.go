package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lurkkit/agent/internal/server"
	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/logger"
	"github.com/lurkkit/agent/pkg/registers"
	"github.com/lurkkit/agent/pkg/signal"
	"github.com/lurkkit/agent/pkg/util"
)

// shutdownSlack is added to the worker grace period to cover the final flush
// and the HTTP server shutdown.
const shutdownSlack = 3 * time.Second

// runAgent 主启动逻辑：配置 → 日志 → 运行时 → HTTP 服务 → 采集 → 等待退出
func runAgent(cmd *cobra.Command, _ []string) error {
	// 1. 加载配置，任何配置错误都在启动 worker 之前返回
	cfg, err := config.LoadConfigWithCli(cmd)
	if err != nil {
		return err
	}

	// 2. 初始化日志
	log, err := logger.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// 3. banner
	if noBanner, _ := cmd.Flags().GetBool("no-banner"); !noBanner {
		util.PrintBanner(cmd.OutOrStdout(), "LurkKit", util.ColorCyan)
	}
	log.Info("configuration loaded",
		zap.String("source", sourceName(cfg)),
		zap.String("host", cfg.Agent.HostTag),
		zap.String("level", cfg.Log.Level),
		zap.String("version", Version))

	// 4. 构建运行时（sink、告警后端、采集器）
	rt, err := registers.InitAgent(cfg, log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("close telemetry sink failed", zap.Error(err))
		}
	}()

	// 5. HTTP 状态服务（可选）
	var httpServer *server.HTTPServer
	if cfg.Server.Enabled {
		httpServer = server.NewHTTPServer(cfg.Server, rt.Registry, statusFunc(cfg, rt, time.Now()), log.Named("server"))
		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("start HTTP server failed: %w", err)
		}
	}

	// 6. 启动采集
	if err := rt.Agent.Start(cmd.Context()); err != nil {
		if httpServer != nil {
			_ = httpServer.Shutdown(context.Background())
		}
		return err
	}

	// 7. 阻塞直到收到退出信号，关闭顺序：采集器 → 指标刷新 → HTTP 服务
	return signal.WaitForShutdown(cmd.Context(), log, cfg.Agent.ShutdownGrace+shutdownSlack, func(ctx context.Context) error {
		err := rt.Agent.Stop(ctx)
		if httpServer != nil {
			err = multierr.Append(err, httpServer.Shutdown(ctx))
		}
		return err
	})
}

func sourceName(cfg *config.Config) string {
	if cfg.Source == "" {
		return "defaults"
	}
	return cfg.Source
}
