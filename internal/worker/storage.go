package worker

import (
	"context"
	"sync"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
)

// CommandInfo is a snapshot of one accepted command.
type CommandInfo struct {
	CommandID string
	Status    types.CommandStatus
	Progress  float64
	Command   types.CommandEnvelope

	ctx             context.Context
	cancelRequested bool
}

// CancellationRequested reports whether the command was cancelled through
// CancelCommand or Clear.
func (c CommandInfo) CancellationRequested() bool {
	return c.cancelRequested
}

// Context returns the command's cancellation context.
func (c CommandInfo) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

type commandRecord struct {
	info   CommandInfo
	cancel context.CancelFunc
}

// release frees the handle. Safe to call more than once.
func (r *commandRecord) release() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Storage is the per-worker command registry.
type Storage struct {
	mu       sync.RWMutex
	commands map[string]*commandRecord
	log      *zap.Logger
}

// NewStorage creates an empty command registry.
func NewStorage(log *zap.Logger) *Storage {
	return &Storage{
		commands: make(map[string]*commandRecord),
		log:      logger.OrNamed(log, "command-storage"),
	}
}

// AddCommand stores the envelope as Running with a fresh cancellation handle.
// It returns false for a missing envelope, an empty id or a duplicate id.
func (s *Storage) AddCommand(cmd *types.CommandEnvelope) bool {
	if cmd == nil || cmd.CommandID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.commands[cmd.CommandID]; exists {
		s.log.Debug("duplicate command rejected", zap.String("command_id", cmd.CommandID))
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.commands[cmd.CommandID] = &commandRecord{
		info: CommandInfo{
			CommandID: cmd.CommandID,
			Status:    types.CommandStatusRunning,
			Command:   *cmd,
			ctx:       ctx,
		},
		cancel: cancel,
	}
	return true
}

// UpdateStatus moves a Running command to a new status. Terminal states are
// final, so updating a terminal record returns false.
func (s *Storage) UpdateStatus(commandID string, status types.CommandStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.commands[commandID]
	if !ok || rec.info.Status.IsTerminal() {
		return false
	}
	rec.info.Status = status
	if status == types.CommandStatusCompleted {
		rec.info.Progress = 100
	}
	if status.IsTerminal() {
		rec.release()
	}
	return true
}

// UpdateProgress records progress for a Running command.
func (s *Storage) UpdateProgress(commandID string, progress float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.commands[commandID]
	if !ok || rec.info.Status.IsTerminal() {
		return false
	}
	rec.info.Progress = clampProgress(progress)
	return true
}

// TryGetCommand returns a snapshot of the command.
func (s *Storage) TryGetCommand(commandID string) (CommandInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.commands[commandID]
	if !ok {
		return CommandInfo{}, false
	}
	return rec.info, true
}

// Handle returns the cancellation context of a stored command.
func (s *Storage) Handle(commandID string) (context.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.commands[commandID]
	if !ok {
		return nil, false
	}
	return rec.info.ctx, true
}

// CancelCommand signals the command's handle and marks it Cancelled.
// Unknown ids and commands that already Completed or Failed return false.
// Cancelling a Cancelled command again is a no-op that returns true.
func (s *Storage) CancelCommand(commandID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.commands[commandID]
	if !ok {
		return false
	}
	switch rec.info.Status {
	case types.CommandStatusCancelled:
		return true
	case types.CommandStatusCompleted, types.CommandStatusFailed:
		return false
	}

	rec.info.cancelRequested = true
	rec.info.Status = types.CommandStatusCancelled
	rec.release()
	s.log.Info("command cancelled", zap.String("command_id", commandID))
	return true
}

// GetActiveCommands returns a snapshot of every Running command.
func (s *Storage) GetActiveCommands() []CommandInfo {
	s.mu.RLock()
	all := make([]CommandInfo, 0, len(s.commands))
	for _, rec := range maputil.Values(s.commands) {
		all = append(all, rec.info)
	}
	s.mu.RUnlock()

	return slice.Filter(all, func(_ int, info CommandInfo) bool {
		return info.Status == types.CommandStatusRunning
	})
}

// Clear cancels every outstanding handle and empties the registry.
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.commands {
		rec.info.cancelRequested = true
		rec.release()
	}
	s.commands = make(map[string]*commandRecord)
}

// Len returns the number of stored commands.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.commands)
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
