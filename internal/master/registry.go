package master

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator sets the worker id generator.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) { r.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// Registry is the master's in-memory worker membership table.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*types.WorkerNode

	now   func() time.Time
	newID func() string
	log   *zap.Logger
}

// NewRegistry creates an empty worker registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		workers: make(map[string]*types.WorkerNode),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrNamed(r.log, "worker-registry")
	return r
}

// RegisterWorker stores a new worker under a freshly generated id.
func (r *Registry) RegisterWorker(url string) (types.WorkerNode, error) {
	url = strings.TrimSpace(url)
	if strutil.IsBlank(url) {
		return types.WorkerNode{}, fmt.Errorf("%w: worker url is required", ErrInvalidArgument)
	}

	id := r.newID()
	if id == "" {
		return types.WorkerNode{}, fmt.Errorf("%w: generated empty worker id", ErrRegistrationConflict)
	}

	now := r.now()
	node := &types.WorkerNode{
		ID:            id,
		URL:           url,
		LastHeartbeat: now,
		Status:        types.WorkerStatusActive,
		RegisteredAt:  now,
	}

	r.mu.Lock()
	if _, exists := r.workers[id]; exists {
		r.mu.Unlock()
		r.log.Error("worker id collision", zap.String("worker_id", id))
		return types.WorkerNode{}, fmt.Errorf("%w: worker id %s already registered", ErrRegistrationConflict, id)
	}
	r.workers[id] = node
	r.mu.Unlock()

	r.log.Info("worker registered", zap.String("worker_id", id), zap.String("url", url))
	return *node, nil
}

// UpdateHeartbeat refreshes a worker's last heartbeat. It returns false for
// an empty or unknown id.
func (r *Registry) UpdateHeartbeat(id string) bool {
	if id == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.workers[id]
	if !ok {
		return false
	}
	node.LastHeartbeat = r.now()
	return true
}

// GetAllWorkers returns a point-in-time copy of every worker, oldest first.
func (r *Registry) GetAllWorkers() []types.WorkerNode {
	r.mu.RLock()
	nodes := maputil.Values(r.workers)
	out := make([]types.WorkerNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, *n)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

// GetWorker returns a copy of one worker.
func (r *Registry) GetWorker(id string) (types.WorkerNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.workers[id]
	if !ok {
		return types.WorkerNode{}, false
	}
	return *node, true
}

// RemoveWorker deletes a worker. It returns false for an unknown id.
func (r *Registry) RemoveWorker(id string) bool {
	r.mu.Lock()
	_, ok := r.workers[id]
	delete(r.workers, id)
	r.mu.Unlock()

	if ok {
		r.log.Info("worker removed", zap.String("worker_id", id))
	}
	return ok
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// MarkStale marks workers whose last heartbeat is older than ttl as
// Unreachable and returns Unreachable workers with a fresh heartbeat to
// Active. Workers are never removed.
func (r *Registry) MarkStale(ttl time.Duration) (marked, restored int) {
	if ttl <= 0 {
		return 0, 0
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, node := range r.workers {
		stale := now.Sub(node.LastHeartbeat) > ttl
		switch {
		case stale && node.Status != types.WorkerStatusUnreachable:
			node.Status = types.WorkerStatusUnreachable
			marked++
			r.log.Warn("worker unreachable",
				zap.String("worker_id", node.ID),
				zap.Time("last_heartbeat", node.LastHeartbeat),
			)
		case !stale && node.Status == types.WorkerStatusUnreachable:
			node.Status = types.WorkerStatusActive
			restored++
			r.log.Info("worker active again", zap.String("worker_id", node.ID))
		}
	}
	return marked, restored
}
