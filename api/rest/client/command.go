package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// CommandClient posts command envelopes to worker command endpoints.
type CommandClient struct {
	agent   *fiber.Client
	timeout time.Duration
	log     *zap.Logger
}

// NewCommandClient creates a command sender. timeout bounds every request.
func NewCommandClient(timeout time.Duration, log *zap.Logger) *CommandClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CommandClient{
		agent:   fiber.AcquireClient(),
		timeout: timeout,
		log:     logger.OrNamed(log, "command-client"),
	}
}

// SendCommand posts cmd to the worker at workerURL. Non-2xx answers are
// returned as *StatusError.
func (c *CommandClient) SendCommand(ctx context.Context, workerURL string, cmd *types.CommandEnvelope) (*types.CommandResponse, error) {
	if cmd == nil {
		return nil, fmt.Errorf("command cannot be nil")
	}
	timeout, err := timeoutFor(ctx, c.timeout)
	if err != nil {
		return nil, err
	}

	body, err := utils.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	url := CommandEndpoint(workerURL)
	req := c.agent.Post(url)
	req.Timeout(timeout)
	req.Body(body)
	req.Set("Content-Type", "application/json")

	statusCode, respBody, errs := req.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to send %s to %s: %w", cmd.Type, url, errs[0])
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, newStatusError(statusCode, respBody)
	}

	resp, err := utils.FromJSONBytes[types.CommandResponse](respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal command response: %w", err)
	}
	c.log.Debug("command sent",
		zap.String("url", url),
		zap.String("type", cmd.Type),
		zap.String("command_id", cmd.CommandID),
		zap.Bool("success", resp.Success),
	)
	return &resp, nil
}

// CommandEndpoint turns a worker base URL into its command endpoint URL.
func CommandEndpoint(workerURL string) string {
	u := strings.TrimSpace(workerURL)
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	u = strings.TrimRight(u, "/")
	if !strings.HasSuffix(u, "/api") {
		u += "/api"
	}
	return u + "/"
}
