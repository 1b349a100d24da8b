package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/duke-git/lancet/v2/strutil"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/internal/master"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// ServerConfig holds the master REST server settings.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool
}

// DefaultServerConfig returns the default master server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":5000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server serves the master's worker registry endpoints.
type Server struct {
	app      *fiber.App
	registry *master.Registry
	config   ServerConfig
	log      *zap.Logger
}

// NewServer creates the master REST server.
func NewServer(registry *master.Registry, cfg ServerConfig, log *zap.Logger) *Server {
	log = logger.OrNamed(log, "master-api")
	s := &Server{
		app: newApp("Worker Master API", fiber.Config{
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}, log),
		registry: registry,
		config:   cfg,
		log:      log,
	}
	if cfg.EnableCORS {
		s.app.Use(corsHandler())
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthCheck)

	api := s.app.Group("/api")

	api.Post("/worker/register", s.registerWorker)
	api.Get("/worker/list", s.listWorkers)

	api.Post("/workernode/register", s.registerWorker)
	api.Post("/workernode/:workerId/heartbeat", s.heartbeat)
	api.Get("/workernode", s.listWorkers)
	api.Get("/workernode/:workerId", s.getWorker)
	api.Delete("/workernode/:workerId", s.removeWorker)

	s.app.Use(notFound)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info("master api listening", zap.String("address", s.config.Address))
	return s.app.Listen(s.config.Address)
}

// Serve serves on an existing listener and blocks until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(types.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *Server) registerWorker(c *fiber.Ctx) error {
	var req types.RegisterWorkerRequest
	if err := utils.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid JSON in request")
	}
	if strutil.IsBlank(req.URL) {
		return badRequest(c, "Url is required.")
	}

	node, err := s.registry.RegisterWorker(req.URL)
	switch {
	case errors.Is(err, master.ErrInvalidArgument):
		return badRequest(c, err.Error())
	case errors.Is(err, master.ErrRegistrationConflict):
		return c.Status(fiber.StatusConflict).JSON(types.NewErrorResponse(err.Error()))
	case err != nil:
		return fmt.Errorf("internal server error during worker registration: %w", err)
	}
	return c.JSON(node)
}

func (s *Server) listWorkers(c *fiber.Ctx) error {
	return c.JSON(s.registry.GetAllWorkers())
}

func (s *Server) heartbeat(c *fiber.Ctx) error {
	id := c.Params("workerId")
	if !s.registry.UpdateHeartbeat(id) {
		return workerNotFound(c, id)
	}
	return c.Status(fiber.StatusOK).Send(nil)
}

func (s *Server) getWorker(c *fiber.Ctx) error {
	id := c.Params("workerId")
	node, ok := s.registry.GetWorker(id)
	if !ok {
		return workerNotFound(c, id)
	}
	return c.JSON(node)
}

func (s *Server) removeWorker(c *fiber.Ctx) error {
	id := c.Params("workerId")
	if !s.registry.RemoveWorker(id) {
		return workerNotFound(c, id)
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

func workerNotFound(c *fiber.Ctx, id string) error {
	return c.Status(fiber.StatusNotFound).JSON(types.NewErrorResponse(fmt.Sprintf("Worker with ID %s not found", id)))
}
