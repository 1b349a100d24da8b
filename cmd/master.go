package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/api/rest"
	"github.com/mrgentlewombat/spring-practice-2025/api/rest/client"
	"github.com/mrgentlewombat/spring-practice-2025/internal/config"
	"github.com/mrgentlewombat/spring-practice-2025/internal/master"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
)

var (
	// master start 命令的 flags
	masterAddress      string
	masterHeartbeatTTL time.Duration
	masterTargetURL    string
	masterNoScheduler  bool
)

// masterCmd 是 master 子命令
var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "管理 Master 节点",
	Long:  `Master 节点负责 worker 注册、心跳和命令轮询。`,
}

// masterStartCmd 是 master start 子命令
var masterStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动 Master 节点",
	Long: `启动 Master 节点。

Master 节点负责：
  - 管理 worker 注册和心跳
  - 周期性查询 worker 状态，空闲时下发 start 命令
  - 提供 REST API`,
	Example: `  # 使用默认配置启动
  mw master start

  # 指定监听地址并关闭轮询
  mw master start --address :9000 --no-scheduler

  # 使用配置文件
  mw master start --config config.yaml`,
	RunE: runMasterStart,
}

func init() {
	rootCmd.AddCommand(masterCmd)
	masterCmd.AddCommand(masterStartCmd)

	masterStartCmd.Flags().StringVar(&masterAddress, "address", ":5000", "HTTP 服务地址")
	masterStartCmd.Flags().DurationVar(&masterHeartbeatTTL, "heartbeat-ttl", 0, "心跳超时时间，0 表示不标记失联 worker")
	masterStartCmd.Flags().StringVar(&masterTargetURL, "target-url", "", "每次轮询额外查询的 worker 地址")
	masterStartCmd.Flags().BoolVar(&masterNoScheduler, "no-scheduler", false, "不启动轮询调度器")
}

func masterOverrides(cmd *cobra.Command) map[string]string {
	overrides := make(map[string]string)
	if cmd.Flags().Changed("address") {
		overrides["master.address"] = masterAddress
	}
	if cmd.Flags().Changed("heartbeat-ttl") {
		overrides["master.heartbeat_ttl"] = masterHeartbeatTTL.String()
	}
	if cmd.Flags().Changed("target-url") {
		overrides["scheduler.target_url"] = masterTargetURL
	}
	if masterNoScheduler {
		overrides["scheduler.enabled"] = "false"
	}
	return overrides
}

// newMasterConfig 将配置文件映射为 master 组件配置
func newMasterConfig(cfg *config.Config) master.Config {
	return master.Config{
		HeartbeatTTL:    cfg.Master.HeartbeatTTL,
		SweepInterval:   cfg.Master.SweepInterval,
		EnableScheduler: cfg.Scheduler.Enabled,
		Scheduler: master.SchedulerConfig{
			TargetURL:      cfg.Scheduler.TargetURL,
			InitialDelay:   cfg.Scheduler.InitialDelay,
			TickInterval:   cfg.Scheduler.TickInterval,
			RequestTimeout: cfg.Scheduler.RequestTimeout,
		},
	}
}

func newServerConfig(cfg *config.Config) rest.ServerConfig {
	return rest.ServerConfig{
		Address:      cfg.Master.Address,
		ReadTimeout:  cfg.Master.ReadTimeout,
		WriteTimeout: cfg.Master.WriteTimeout,
		EnableCORS:   cfg.Master.EnableCORS,
	}
}

func runMasterStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(masterOverrides(cmd))
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := master.NewRegistry(master.WithLogger(logger.Named("registry")))
	commands := client.NewCommandClient(cfg.Scheduler.RequestTimeout, logger.Named("command-client"))
	m := master.NewWorkerMaster(newMasterConfig(cfg), registry, commands, logger.Named("master"))
	server := rest.NewServer(registry, newServerConfig(cfg), logger.Named("master-api"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), Banner, Version)
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "  HTTP 地址: %s\n", cfg.Master.Address)
		fmt.Fprintf(cmd.OutOrStdout(), "  轮询调度: %v\n", cfg.Scheduler.Enabled)
		fmt.Fprintln(cmd.OutOrStdout())
	}

	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("启动 Master 失败: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down master")
	case serveErr = <-errCh:
		logger.Error("master api stopped", zap.Error(serveErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("master api shutdown", zap.Error(err))
	}
	if err := m.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("停止 Master 失败: %w", err)
	}
	if serveErr != nil {
		return fmt.Errorf("master api: %w", serveErr)
	}
	return nil
}
