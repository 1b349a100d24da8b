package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/strutil"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

const (
	defaultWorkStep      = 5
	defaultWorkStepDelay = 500 * time.Millisecond
)

// ErrProcessorClosed is returned by start after Close.
var ErrProcessorClosed = errors.New("processor closed")

// Tracker receives envelope-level progress from background work.
// Storage implements it.
type Tracker interface {
	UpdateStatus(commandID string, status types.CommandStatus) bool
	UpdateProgress(commandID string, progress float64) bool
}

// Invocation is one command as seen by a Command.
type Invocation struct {
	CommandID string
	Type      string
	Payload   any
	// Handle is the command's cancellation context. Background work derives
	// from it so cancelling the command stops the work.
	Handle context.Context
}

// Outcome is what a Command returns on success.
type Outcome struct {
	Result any
	// Async marks work that continues after Execute returns and finishes
	// its own command record.
	Async bool
}

// Command is one executable command kind.
type Command interface {
	Execute(ctx context.Context, inv *Invocation) (*Outcome, error)
}

// CommandFunc adapts a function to Command.
type CommandFunc func(ctx context.Context, inv *Invocation) (*Outcome, error)

// Execute calls f.
func (f CommandFunc) Execute(ctx context.Context, inv *Invocation) (*Outcome, error) {
	return f(ctx, inv)
}

// Response is the processor's reply. It is always well formed.
type Response struct {
	Success bool
	Message string
	Result  any
	Async   bool
}

// Status is the worker-wide state of the background operation.
type Status struct {
	State     types.WorkState `json:"status"`
	Progress  float64         `json:"progress"`
	CommandID string          `json:"commandId,omitempty"`
}

// Workload is called once per progress step of a background operation.
// Returning an error puts the worker into the Error state.
type Workload func(ctx context.Context, progress float64) error

// Option configures a Processor.
type Option func(*Processor)

// WithTracker sets where background work reports progress and completion.
func WithTracker(t Tracker) Option {
	return func(p *Processor) { p.tracker = t }
}

// WithCommand registers an extra command kind, replacing a built-in of the same name.
func WithCommand(name string, cmd Command) Option {
	return func(p *Processor) {
		p.commands[strings.ToLower(strings.TrimSpace(name))] = cmd
	}
}

// WithWorkStep sets the simulated work increment and the delay per increment.
func WithWorkStep(step int, delay time.Duration) Option {
	return func(p *Processor) {
		if step > 0 {
			p.step = step
		}
		if delay >= 0 {
			p.delay = delay
		}
	}
}

// WithWorkload sets the per-step work hook.
func WithWorkload(w Workload) Option {
	return func(p *Processor) { p.workload = w }
}

// WithFileLocks shares a lock table with the processor.
func WithFileLocks(l *FileLocks) Option {
	return func(p *Processor) { p.locks = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) { p.log = l }
}

// Processor executes command kinds and owns the worker's single background
// operation.
type Processor struct {
	commands map[string]Command
	tracker  Tracker
	stats    *Stats
	locks    *FileLocks
	step     int
	delay    time.Duration
	workload Workload
	log      *zap.Logger

	mu        sync.Mutex
	state     types.WorkState
	progress  float64
	currentID string
	cancel    context.CancelFunc
	gen       uint64
	closed    bool
	wg        sync.WaitGroup
}

// NewProcessor creates a processor with the built-in command kinds.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		commands: make(map[string]Command),
		stats:    NewStats(),
		step:     defaultWorkStep,
		delay:    defaultWorkStepDelay,
		state:    types.WorkStateIdle,
	}
	p.registerBuiltins()
	for _, opt := range opts {
		opt(p)
	}
	if p.locks == nil {
		p.locks = NewFileLocks()
	}
	p.log = logger.OrNamed(p.log, "command-processor")
	return p
}

// ProcessCommand executes a command that has no registry record.
func (p *Processor) ProcessCommand(ctx context.Context, commandType string, payload any) *Response {
	return p.Dispatch(ctx, &Invocation{Type: commandType, Payload: payload})
}

// Dispatch executes inv. Errors and panics inside a command become a failed
// Response.
func (p *Processor) Dispatch(ctx context.Context, inv *Invocation) (resp *Response) {
	if inv == nil {
		inv = &Invocation{}
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("command panicked",
				zap.String("type", inv.Type),
				zap.String("command_id", inv.CommandID),
				zap.Any("panic", r),
			)
			resp = &Response{Success: false, Message: fmt.Sprintf("Error executing command: %v", r)}
		}
		p.stats.Record(time.Since(start), resp.Success)
	}()

	if strutil.IsBlank(inv.Type) {
		return &Response{Success: false, Message: "Command cannot be empty"}
	}

	name := strings.ToLower(strings.TrimSpace(inv.Type))
	cmd, ok := p.commands[name]
	if !ok {
		return &Response{Success: false, Message: fmt.Sprintf("Unknown command: %s", inv.Type)}
	}

	out, err := cmd.Execute(ctx, inv)
	if err != nil {
		p.log.Warn("command failed",
			zap.String("type", name),
			zap.String("command_id", inv.CommandID),
			zap.Error(err),
		)
		return &Response{Success: false, Message: fmt.Sprintf("Error executing command: %v", err)}
	}
	if out == nil {
		out = &Outcome{}
	}
	return &Response{
		Success: true,
		Message: fmt.Sprintf("Command '%s' executed successfully", name),
		Result:  out.Result,
		Async:   out.Async,
	}
}

// GetStatus returns the state of the background operation.
func (p *Processor) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{State: p.state, Progress: p.progress, CommandID: p.currentID}
}

// Commands returns the registered command names in sorted order.
func (p *Processor) Commands() []string {
	names := maputil.Keys(p.commands)
	sort.Strings(names)
	return names
}

// Stats returns the processor's statistics.
func (p *Processor) Stats() *Stats {
	return p.stats
}

// Locks returns the processor's file lock table.
func (p *Processor) Locks() *FileLocks {
	return p.locks
}

// Close stops the background operation and waits for it to exit.
func (p *Processor) Close() {
	p.mu.Lock()
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Processor) startWork(inv *Invocation) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrProcessorClosed
	}
	if p.state == types.WorkStateWorking {
		return "", ErrAlreadyWorking
	}
	if p.cancel != nil {
		p.cancel()
	}

	parent := inv.Handle
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	p.gen++
	gen := p.gen
	id := inv.CommandID
	p.cancel = cancel
	p.state = types.WorkStateWorking
	p.progress = 0
	p.currentID = id

	p.wg.Add(1)
	// Done runs only after the final status is recorded, on both paths.
	utils.SafeGoWithCallback(func() {
		defer cancel()
		p.runWork(ctx, gen, id)
		p.wg.Done()
	}, func(r any) {
		p.finishWork(gen, id, types.WorkStateError, types.CommandStatusFailed)
		p.wg.Done()
	})

	p.log.Info("work started", zap.String("command_id", id))
	return fmt.Sprintf("Work started with data: %s", describePayload(inv.Payload)), nil
}

func (p *Processor) stopWork() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != types.WorkStateWorking {
		return "No work in progress to stop."
	}
	if p.cancel != nil {
		p.cancel()
	}
	// 作废当前 generation，后台任务退出时不再改写状态
	p.gen++
	p.state = types.WorkStateIdle
	if p.tracker != nil && p.currentID != "" {
		p.tracker.UpdateStatus(p.currentID, types.CommandStatusCancelled)
	}
	p.log.Info("work stopped", zap.String("command_id", p.currentID))
	return "Work stopped successfully."
}

func (p *Processor) runWork(ctx context.Context, gen uint64, id string) {
	for i := 0; ; i += p.step {
		progress := float64(min(i, 100))
		if ctx.Err() != nil {
			p.finishWork(gen, id, types.WorkStateIdle, types.CommandStatusCancelled)
			return
		}
		if !p.setProgress(gen, id, progress) {
			return
		}
		if p.workload != nil {
			if err := p.workload(ctx, progress); err != nil {
				if ctx.Err() != nil {
					p.finishWork(gen, id, types.WorkStateIdle, types.CommandStatusCancelled)
					return
				}
				p.log.Error("work failed", zap.String("command_id", id), zap.Error(err))
				p.finishWork(gen, id, types.WorkStateError, types.CommandStatusFailed)
				return
			}
		}
		if !sleepCtx(ctx, p.delay) {
			p.finishWork(gen, id, types.WorkStateIdle, types.CommandStatusCancelled)
			return
		}
		if progress >= 100 {
			break
		}
	}
	p.log.Info("work completed", zap.String("command_id", id))
	p.finishWork(gen, id, types.WorkStateIdle, types.CommandStatusCompleted)
}

func (p *Processor) setProgress(gen uint64, id string, progress float64) bool {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return false
	}
	p.progress = progress
	p.mu.Unlock()

	if p.tracker != nil && id != "" {
		p.tracker.UpdateProgress(id, progress)
	}
	return true
}

func (p *Processor) finishWork(gen uint64, id string, state types.WorkState, status types.CommandStatus) {
	p.mu.Lock()
	if gen == p.gen {
		p.state = state
	}
	p.mu.Unlock()

	if p.tracker != nil && id != "" {
		p.tracker.UpdateStatus(id, status)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func describePayload(payload any) string {
	if payload == nil {
		return "<none>"
	}
	if s, ok := payload.(string); ok {
		return s
	}
	if s, err := utils.MarshalString(payload); err == nil {
		return s
	}
	return fmt.Sprint(payload)
}
