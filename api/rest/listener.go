package rest

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/strutil"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/mrgentlewombat/spring-practice-2025/internal/worker"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// CommandPath is the worker's single command endpoint.
const CommandPath = "/api/"

// ListenerConfig holds the command listener settings.
type ListenerConfig struct {
	Address string
	// MaxConnections bounds concurrently served connections. Zero means no limit.
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Listener is the worker's network entry point. It records every accepted
// envelope in the command storage and routes it by type.
type Listener struct {
	app       *fiber.App
	storage   *worker.Storage
	processor *worker.Processor
	config    ListenerConfig
	log       *zap.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewListener creates a command listener.
func NewListener(cfg ListenerConfig, storage *worker.Storage, processor *worker.Processor, log *zap.Logger) *Listener {
	log = logger.OrNamed(log, "command-listener")
	l := &Listener{
		app: newApp("Worker Command Listener", fiber.Config{
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}, log),
		storage:   storage,
		processor: processor,
		config:    cfg,
		log:       log,
	}

	l.app.Post(CommandPath, l.handleCommand)
	l.app.All(CommandPath, methodNotAllowed(fiber.MethodPost))
	l.app.Use(notFound)
	return l
}

// App returns the underlying Fiber app.
func (l *Listener) App() *fiber.App {
	return l.app
}

// Start binds the configured address and serves in the background.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.config.Address)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", l.config.Address, err)
	}
	utils.SafeGoWithName("command-listener", func() {
		if err := l.Serve(ln); err != nil {
			l.log.Error("command listener stopped", zap.Error(err))
		}
	})
	return nil
}

// Serve serves on ln until Stop. Connections beyond MaxConnections wait in
// the accept queue.
func (l *Listener) Serve(ln net.Listener) error {
	if l.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, l.config.MaxConnections)
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.log.Info("command listener started",
		zap.String("url", fmt.Sprintf("http://%s%s", ln.Addr(), CommandPath)),
		zap.Int("max_connections", l.config.MaxConnections),
	)
	return l.app.Listener(ln)
}

// Addr returns the bound address, nil before Start or Serve.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Stop stops accepting and waits for in-flight requests or ctx.
func (l *Listener) Stop(ctx context.Context) error {
	err := l.app.ShutdownWithContext(ctx)
	l.log.Info("command listener stopped")
	return err
}

func (l *Listener) handleCommand(c *fiber.Ctx) error {
	var cmd types.CommandEnvelope
	if err := utils.Unmarshal(c.Body(), &cmd); err != nil {
		return badRequest(c, "Invalid JSON in request")
	}
	if strutil.IsBlank(cmd.Type) {
		return badRequest(c, "Invalid command")
	}
	if cmd.CommandID == "" {
		cmd.CommandID = uuid.New().String()
	}

	if !l.storage.AddCommand(&cmd) {
		return c.Status(fiber.StatusConflict).JSON(types.NewErrorResponse(
			fmt.Sprintf("Duplicate command id: %s", cmd.CommandID)))
	}

	var resp *types.CommandResponse
	switch strings.ToLower(strings.TrimSpace(cmd.Type)) {
	case types.TypeStatus:
		resp = l.handleStatus(&cmd)
	case types.TypeCancel:
		resp = l.handleCancel(&cmd)
	default:
		resp = l.handleProcessorCommand(c.UserContext(), &cmd)
	}

	l.log.Debug("command handled",
		zap.String("type", cmd.Type),
		zap.String("command_id", cmd.CommandID),
		zap.Bool("success", resp.Success),
	)
	return c.JSON(resp)
}

// handleStatus reports a stored command's status when the payload names one,
// otherwise the worker-wide state.
func (l *Listener) handleStatus(cmd *types.CommandEnvelope) *types.CommandResponse {
	resp := &types.CommandResponse{CommandID: cmd.CommandID}

	if target := worker.TargetID(cmd.Payload); target != "" && target != cmd.CommandID {
		info, ok := l.storage.TryGetCommand(target)
		if !ok {
			resp.Status = fmt.Sprintf("Unknown command id: %s", target)
		} else {
			progress := info.Progress
			resp.Success = true
			resp.Status = string(info.Status)
			resp.Progress = &progress
		}
	} else {
		st := l.processor.GetStatus()
		resp.Success = true
		resp.Status = string(st.State)
		resp.Progress = &st.Progress
	}

	l.finish(cmd.CommandID, resp.Success)
	return resp
}

func (l *Listener) handleCancel(cmd *types.CommandEnvelope) *types.CommandResponse {
	resp := &types.CommandResponse{CommandID: cmd.CommandID}

	target := worker.TargetID(cmd.Payload)
	switch {
	case target == "" || target == cmd.CommandID:
		resp.Status = "Cancel requires the id of the command to cancel"
	case l.storage.CancelCommand(target):
		resp.Success = true
		resp.Status = string(types.CommandStatusCancelled)
		resp.Result = target
	default:
		resp.Status = fmt.Sprintf("Command %s cannot be cancelled", target)
	}

	l.finish(cmd.CommandID, resp.Success)
	return resp
}

func (l *Listener) handleProcessorCommand(ctx context.Context, cmd *types.CommandEnvelope) *types.CommandResponse {
	handle, _ := l.storage.Handle(cmd.CommandID)
	result := l.processor.Dispatch(ctx, &worker.Invocation{
		CommandID: cmd.CommandID,
		Type:      cmd.Type,
		Payload:   cmd.Payload,
		Handle:    handle,
	})

	// background work completes its own record
	if !(result.Success && result.Async) {
		l.finish(cmd.CommandID, result.Success)
	}

	return &types.CommandResponse{
		Success:   result.Success,
		Status:    result.Message,
		Result:    result.Result,
		CommandID: cmd.CommandID,
	}
}

func (l *Listener) finish(commandID string, success bool) {
	status := types.CommandStatusCompleted
	if !success {
		status = types.CommandStatusFailed
	}
	l.storage.UpdateStatus(commandID, status)
}
