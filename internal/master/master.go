package master

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// Config holds the configuration for a WorkerMaster.
type Config struct {
	// HeartbeatTTL enables the stale sweep when positive.
	HeartbeatTTL  time.Duration
	SweepInterval time.Duration
	// EnableScheduler starts the polling loop with the master.
	EnableScheduler bool
	Scheduler       SchedulerConfig
}

// WorkerMaster owns the registry, the scheduler and the stale sweep.
type WorkerMaster struct {
	config    Config
	registry  *Registry
	scheduler *Scheduler
	log       *zap.Logger

	started  atomic.Bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorkerMaster creates a master around registry. client is used by the
// scheduler and may be nil when the scheduler is disabled.
func NewWorkerMaster(cfg Config, registry *Registry, client WorkerClient, log *zap.Logger) *WorkerMaster {
	log = logger.OrNamed(log, "master")
	if registry == nil {
		registry = NewRegistry(WithLogger(log.Named("registry")))
	}
	m := &WorkerMaster{
		config:   cfg,
		registry: registry,
		log:      log,
	}
	if cfg.EnableScheduler && client != nil {
		m.scheduler = NewScheduler(cfg.Scheduler, client, registry, log.Named("scheduler"))
	}
	return m
}

// Registry returns the worker registry.
func (m *WorkerMaster) Registry() *Registry {
	return m.registry
}

// Scheduler returns the scheduler, nil when disabled.
func (m *WorkerMaster) Scheduler() *Scheduler {
	return m.scheduler
}

// Start launches the scheduler and, when HeartbeatTTL is set, the stale sweep.
func (m *WorkerMaster) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("master already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.scheduler != nil {
		if err := m.scheduler.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("启动调度器失败: %w", err)
		}
	}

	if m.config.HeartbeatTTL > 0 {
		interval := m.config.SweepInterval
		if interval <= 0 {
			interval = m.config.HeartbeatTTL
		}
		m.wg.Add(1)
		utils.SafeGoWithName("stale-sweep", func() {
			defer m.wg.Done()
			m.sweepLoop(runCtx, interval)
		})
	}

	m.log.Info("master started",
		zap.Bool("scheduler", m.scheduler != nil),
		zap.Duration("heartbeat_ttl", m.config.HeartbeatTTL),
	)
	return nil
}

// Stop halts the background loops. It is safe to call more than once.
func (m *WorkerMaster) Stop(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		if m.scheduler != nil {
			err = m.scheduler.Stop(ctx)
		}
		if m.cancel != nil {
			m.cancel()
		}

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
		m.log.Info("master stopped")
	})
	return err
}

func (m *WorkerMaster) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			marked, restored := m.registry.MarkStale(m.config.HeartbeatTTL)
			if marked > 0 || restored > 0 {
				m.log.Info("stale sweep", zap.Int("marked", marked), zap.Int("restored", restored))
			}
		}
	}
}
