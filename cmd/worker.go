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
	"github.com/mrgentlewombat/spring-practice-2025/internal/worker"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

var (
	// worker start 命令的 flags
	workerPort       int
	workerBaseURL    string
	workerMasterURL  string
	workerNoRegister bool

	// worker send 命令的 flags
	sendURL     string
	sendType    string
	sendID      string
	sendPayload string
	sendTimeout time.Duration
)

// workerCmd 是 worker 子命令
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "管理 Worker 节点",
	Long:  `Worker 节点在 /api/ 上接收命令，并向 master 注册和发送心跳。`,
}

// workerStartCmd 是 worker start 子命令
var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动 Worker 节点",
	Example: `  # 使用默认配置启动
  mw worker start

  # 指定端口和 master 地址
  mw worker start --port 5002 --master-url http://10.0.0.1:5000`,
	RunE: runWorkerStart,
}

// workerSendCmd 是 worker send 子命令
var workerSendCmd = &cobra.Command{
	Use:   "send",
	Short: "向 Worker 节点发送一条命令",
	Example: `  mw worker send --type ping
  mw worker send --url http://localhost:5001 --type status --payload '{"id":"abc"}'`,
	RunE: runWorkerSend,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerStartCmd)
	workerCmd.AddCommand(workerSendCmd)

	workerStartCmd.Flags().IntVar(&workerPort, "port", 5001, "命令监听端口")
	workerStartCmd.Flags().StringVar(&workerBaseURL, "base-url", "localhost", "命令监听主机")
	workerStartCmd.Flags().StringVar(&workerMasterURL, "master-url", "", "Master 节点地址")
	workerStartCmd.Flags().BoolVar(&workerNoRegister, "no-register", false, "不向 master 注册")

	workerSendCmd.Flags().StringVar(&sendURL, "url", "http://localhost:5001", "Worker 节点地址")
	workerSendCmd.Flags().StringVarP(&sendType, "type", "t", "", "命令类型")
	workerSendCmd.Flags().StringVar(&sendID, "id", "", "命令 ID，缺省时由 worker 生成")
	workerSendCmd.Flags().StringVarP(&sendPayload, "payload", "p", "", "JSON 格式的命令参数")
	workerSendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "请求超时时间")
	_ = workerSendCmd.MarkFlagRequired("type")
}

func workerOverrides(cmd *cobra.Command) map[string]string {
	overrides := make(map[string]string)
	if cmd.Flags().Changed("port") {
		overrides["worker.port"] = fmt.Sprint(workerPort)
	}
	if cmd.Flags().Changed("base-url") {
		overrides["worker.base_url"] = workerBaseURL
	}
	if cmd.Flags().Changed("master-url") {
		overrides["worker.master_url"] = workerMasterURL
	}
	if workerNoRegister {
		overrides["worker.register"] = "false"
	}
	return overrides
}

func newListenerConfig(cfg *config.Config) rest.ListenerConfig {
	return rest.ListenerConfig{
		Address:        cfg.Worker.ListenAddress(),
		MaxConnections: cfg.Worker.MaxConnections,
	}
}

func newClientConfig(cfg *config.Config) *client.Config {
	return &client.Config{
		MasterURL:         cfg.Worker.MasterURL,
		AdvertiseURL:      cfg.Worker.AdvertiseURL(),
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		RequestTimeout:    cfg.Worker.RequestTimeout,
	}
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(workerOverrides(cmd))
	if err != nil {
		return err
	}
	defer logger.Sync()

	storage := worker.NewStorage(logger.Named("storage"))
	processor := worker.NewProcessor(
		worker.WithTracker(storage),
		worker.WithWorkStep(cfg.Worker.WorkStep, cfg.Worker.WorkStepDelay),
		worker.WithLogger(logger.Named("processor")),
	)
	listener := rest.NewListener(newListenerConfig(cfg), storage, processor, logger.Named("command-listener"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := listener.Start(); err != nil {
		processor.Close()
		return fmt.Errorf("启动 Worker 失败: %w", err)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), Banner, Version)
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "  命令地址: %s%s\n", cfg.Worker.AdvertiseURL(), rest.CommandPath)
		fmt.Fprintf(cmd.OutOrStdout(), "  Master: %s (注册: %v)\n", cfg.Worker.MasterURL, cfg.Worker.Register)
		fmt.Fprintln(cmd.OutOrStdout())
	}

	var mc *client.Client
	if cfg.Worker.Register {
		mc = client.NewClient(newClientConfig(cfg), logger.Named("master-client"))
		if _, err := mc.Register(ctx); err != nil {
			// 心跳循环会在下一次 tick 重新注册
			logger.Warn("initial registration failed", zap.Error(err))
		}
		if err := mc.StartHeartbeat(ctx); err != nil {
			logger.Warn("heartbeat not started", zap.Error(err))
		}
	}

	<-ctx.Done()
	logger.Info("shutting down worker")

	if mc != nil {
		mc.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := listener.Stop(shutdownCtx); err != nil {
		logger.Warn("command listener shutdown", zap.Error(err))
	}
	processor.Close()
	storage.Clear()
	return nil
}

// parsePayload 解析 --payload，空字符串表示无参数
func parsePayload(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var payload any
	if err := utils.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return payload, nil
}

func runWorkerSend(cmd *cobra.Command, args []string) error {
	payload, err := parsePayload(sendPayload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	c := client.NewCommandClient(sendTimeout, zap.NewNop())
	resp, err := c.SendCommand(ctx, sendURL, &types.CommandEnvelope{
		Type:      sendType,
		Payload:   payload,
		CommandID: sendID,
	})
	if err != nil {
		return err
	}

	out, err := utils.MarshalString(resp)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	if !resp.Success {
		return fmt.Errorf("command %s failed: %s", resp.CommandID, resp.Status)
	}
	return nil
}
