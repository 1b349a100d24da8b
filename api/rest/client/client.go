package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// Config holds the configuration for the worker's master client.
type Config struct {
	// MasterURL is the base URL of the master node (e.g., "http://localhost:5000").
	MasterURL string

	// AdvertiseURL is the URL the master uses to reach this worker.
	AdvertiseURL string

	// HeartbeatInterval is the interval between heartbeats.
	HeartbeatInterval time.Duration

	// RequestTimeout is the timeout for HTTP requests.
	RequestTimeout time.Duration
}

// DefaultConfig returns a default client configuration.
func DefaultConfig() *Config {
	return &Config{
		MasterURL:         "http://localhost:5000",
		AdvertiseURL:      "http://localhost:5001",
		HeartbeatInterval: 5 * time.Second,
		RequestTimeout:    5 * time.Second,
	}
}

// Client registers a worker with the master and keeps it alive with heartbeats.
type Client struct {
	config *Config
	agent  *fiber.Client
	log    *zap.Logger

	mu         sync.RWMutex
	workerID   string
	registered atomic.Bool

	heartbeatCancel context.CancelFunc
	heartbeatDone   chan struct{}
	stopOnce        sync.Once
}

// NewClient creates a master client.
func NewClient(config *Config, log *zap.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	config.MasterURL = strings.TrimRight(config.MasterURL, "/")
	return &Client{
		config: config,
		agent:  fiber.AcquireClient(),
		log:    logger.OrNamed(log, "master-client"),
	}
}

// WorkerID returns the id assigned by the master, empty before Register.
func (c *Client) WorkerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workerID
}

// IsRegistered reports whether the last registration succeeded.
func (c *Client) IsRegistered() bool {
	return c.registered.Load()
}

// Register registers this worker with the master.
func (c *Client) Register(ctx context.Context) (*types.WorkerNode, error) {
	body, err := utils.Marshal(types.RegisterWorkerRequest{URL: c.config.AdvertiseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal register request: %w", err)
	}

	statusCode, respBody, err := c.post(ctx, c.config.MasterURL+"/api/worker/register", body)
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	if statusCode != fiber.StatusOK && statusCode != fiber.StatusCreated {
		return nil, fmt.Errorf("registration failed: %w", newStatusError(statusCode, respBody))
	}

	node, err := utils.FromJSONBytes[types.WorkerNode](respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal register response: %w", err)
	}
	if node.ID == "" {
		return nil, fmt.Errorf("registration response has no worker id")
	}

	c.mu.Lock()
	c.workerID = node.ID
	c.mu.Unlock()
	c.registered.Store(true)

	c.log.Info("registered with master",
		zap.String("worker_id", node.ID),
		zap.String("master", c.config.MasterURL),
	)
	return &node, nil
}

// Heartbeat reports liveness once. It returns ErrWorkerNotFound when the
// master no longer knows this worker.
func (c *Client) Heartbeat(ctx context.Context) error {
	id := c.WorkerID()
	if id == "" {
		return ErrWorkerNotFound
	}

	url := fmt.Sprintf("%s/api/workernode/%s/heartbeat", c.config.MasterURL, id)
	statusCode, respBody, err := c.post(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	switch statusCode {
	case fiber.StatusOK, fiber.StatusNoContent:
		return nil
	case fiber.StatusNotFound:
		c.registered.Store(false)
		return ErrWorkerNotFound
	default:
		return fmt.Errorf("heartbeat failed: %w", newStatusError(statusCode, respBody))
	}
}

// StartHeartbeat sends heartbeats every HeartbeatInterval until Close or ctx
// is done. Unknown workers re-register on the next tick.
func (c *Client) StartHeartbeat(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.heartbeatCancel != nil {
		return fmt.Errorf("heartbeat already started")
	}
	interval := c.config.HeartbeatInterval
	if interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}

	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.heartbeatCancel = cancel
	c.heartbeatDone = done

	utils.SafeGoWithName("heartbeat", func() {
		defer close(done)
		c.heartbeatLoop(hbCtx, interval)
	})
	return nil
}

func (c *Client) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.beat(ctx)
		}
	}
}

func (c *Client) beat(ctx context.Context) {
	if !c.IsRegistered() {
		if _, err := c.Register(ctx); err != nil {
			c.log.Warn("re-registration failed", zap.Error(err))
		}
		return
	}

	err := c.Heartbeat(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrWorkerNotFound):
		c.log.Warn("master lost this worker, registering again", zap.String("worker_id", c.WorkerID()))
		if _, err := c.Register(ctx); err != nil {
			c.log.Warn("re-registration failed", zap.Error(err))
		}
	default:
		c.log.Warn("heartbeat failed", zap.Error(err))
	}
}

// Close stops the heartbeat loop. It is safe to call more than once.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cancel, done := c.heartbeatCancel, c.heartbeatDone
		c.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
	})
}

func (c *Client) post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	timeout, err := timeoutFor(ctx, c.config.RequestTimeout)
	if err != nil {
		return 0, nil, err
	}

	req := c.agent.Post(url)
	req.Timeout(timeout)
	if body != nil {
		req.Body(body)
		req.Set("Content-Type", "application/json")
	}

	statusCode, respBody, errs := req.Bytes()
	if len(errs) > 0 {
		return 0, nil, errs[0]
	}
	return statusCode, respBody, nil
}
