package master

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// SchedulerConfig holds the polling loop settings.
type SchedulerConfig struct {
	// TargetURL is polled on every tick in addition to registered workers.
	TargetURL      string
	InitialDelay   time.Duration
	TickInterval   time.Duration
	RequestTimeout time.Duration
}

// DefaultSchedulerConfig returns the default polling settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		InitialDelay:   5 * time.Second,
		TickInterval:   10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// TickReport summarizes one tick.
type TickReport struct {
	Polled  int
	Started int
	Failed  int
}

// Scheduler periodically polls workers and starts work on idle ones.
// Failures never stop the loop; there is no backoff.
type Scheduler struct {
	cfg     SchedulerConfig
	client  WorkerClient
	workers WorkerSource
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun TickReport
}

// NewScheduler creates a scheduler. workers may be nil when only TargetURL is polled.
func NewScheduler(cfg SchedulerConfig, client WorkerClient, workers WorkerSource, log *zap.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	return &Scheduler{
		cfg:     cfg,
		client:  client,
		workers: workers,
		log:     logger.OrNamed(log, "scheduler"),
		now:     time.Now,
	}
}

// Start runs the loop in the background until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	utils.SafeGoWithName("scheduler", func() {
		defer close(done)
		s.Run(runCtx)
	})
	return nil
}

// Stop cancels the loop and waits for it to exit or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run waits InitialDelay, then ticks every TickInterval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started",
		zap.Duration("initial_delay", s.cfg.InitialDelay),
		zap.Duration("tick_interval", s.cfg.TickInterval),
	)
	defer s.log.Info("scheduler stopped")

	if !wait(ctx, s.cfg.InitialDelay) {
		return
	}
	for {
		s.Tick(ctx)
		if !wait(ctx, s.cfg.TickInterval) {
			return
		}
	}
}

// Tick polls every target once and starts work on idle ones.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	var report TickReport
	for _, target := range s.targets() {
		if ctx.Err() != nil {
			break
		}
		report.Polled++
		started, err := s.poll(ctx, target)
		if err != nil {
			report.Failed++
			s.log.Warn("failed to communicate with worker node", zap.String("url", target), zap.Error(err))
			continue
		}
		if started {
			report.Started++
		}
	}

	s.mu.Lock()
	s.lastRun = report
	s.mu.Unlock()

	s.log.Debug("scheduler tick",
		zap.Int("polled", report.Polled),
		zap.Int("started", report.Started),
		zap.Int("failed", report.Failed),
	)
	return report
}

// LastTick returns the report of the most recent tick.
func (s *Scheduler) LastTick() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) targets() []string {
	urls := []string{s.cfg.TargetURL}
	if s.workers != nil {
		for _, w := range s.workers.GetAllWorkers() {
			if w.Status == types.WorkerStatusUnreachable {
				continue
			}
			urls = append(urls, w.URL)
		}
	}
	urls = slice.Map(urls, func(_ int, u string) string {
		return strings.TrimRight(strings.TrimSpace(u), "/")
	})
	urls = slice.Filter(urls, func(_ int, u string) bool { return !strutil.IsBlank(u) })
	return slice.Unique(urls)
}

func (s *Scheduler) poll(ctx context.Context, url string) (bool, error) {
	status, err := s.send(ctx, url, &types.CommandEnvelope{Type: types.TypeStatus})
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	s.log.Debug("worker status",
		zap.String("url", url),
		zap.String("status", status.Status),
		zap.Float64p("progress", status.Progress),
	)

	if status.Status != string(types.WorkStateIdle) {
		return false, nil
	}

	resp, err := s.send(ctx, url, &types.CommandEnvelope{
		Type:    types.TypeStart,
		Payload: map[string]any{"timestamp": s.now().UTC().Format(time.RFC3339Nano)},
	})
	if err != nil {
		return false, fmt.Errorf("start: %w", err)
	}
	s.log.Info("work process dispatched",
		zap.String("url", url),
		zap.Bool("success", resp.Success),
		zap.String("status", resp.Status),
	)
	return resp.Success, nil
}

func (s *Scheduler) send(ctx context.Context, url string, cmd *types.CommandEnvelope) (*types.CommandResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	cmd.CommandID = uuid.New().String()
	resp, err := s.client.SendCommand(reqCtx, url, cmd)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}
	return resp, nil
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
