package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
)

// InfoResult is returned by the info command.
type InfoResult struct {
	Commands    []string        `json:"commands"`
	Status      types.WorkState `json:"status"`
	Progress    float64         `json:"progress"`
	LockedFiles []string        `json:"lockedFiles"`
	Uptime      string          `json:"uptime"`
}

func (p *Processor) registerBuiltins() {
	p.commands[types.TypePing] = CommandFunc(p.ping)
	p.commands[types.TypeHello] = CommandFunc(hello)
	p.commands[types.TypeStart] = CommandFunc(p.start)
	p.commands[types.TypeStartProcessing] = CommandFunc(p.startProcessing)
	p.commands[types.TypeStop] = CommandFunc(p.stop)
	p.commands[types.TypeSendStatistics] = CommandFunc(p.sendStatistics)
	p.commands[types.TypeLockFiles] = CommandFunc(p.lockFiles)
	p.commands[types.TypeUnlockFiles] = CommandFunc(p.unlockFiles)
	p.commands[types.TypeInfo] = CommandFunc(p.info)
}

func (p *Processor) ping(_ context.Context, _ *Invocation) (*Outcome, error) {
	return &Outcome{Result: fmt.Sprintf("Pong! Time: %s, Uptime: %.0f seconds",
		time.Now().Format(time.RFC3339), p.stats.Uptime().Seconds())}, nil
}

func hello(_ context.Context, inv *Invocation) (*Outcome, error) {
	name := payloadString(inv.Payload, namePaths...)
	if name == "" {
		name = "there"
	}
	return &Outcome{Result: fmt.Sprintf("Hello, %s! Greetings from Worker Node.", name)}, nil
}

func (p *Processor) start(_ context.Context, inv *Invocation) (*Outcome, error) {
	msg, err := p.startWork(inv)
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: msg, Async: true}, nil
}

// startProcessing is start with a required file path.
func (p *Processor) startProcessing(ctx context.Context, inv *Invocation) (*Outcome, error) {
	path := payloadString(inv.Payload, filePathPaths...)
	if path == "" {
		return nil, fmt.Errorf("%w: file path is required", ErrInvalidPayload)
	}
	withPath := *inv
	withPath.Payload = path
	return p.start(ctx, &withPath)
}

func (p *Processor) stop(_ context.Context, _ *Invocation) (*Outcome, error) {
	return &Outcome{Result: p.stopWork()}, nil
}

func (p *Processor) sendStatistics(_ context.Context, _ *Invocation) (*Outcome, error) {
	return &Outcome{Result: p.stats.Snapshot()}, nil
}

func (p *Processor) lockFiles(_ context.Context, inv *Invocation) (*Outcome, error) {
	files := payloadStrings(inv.Payload)
	if err := p.locks.Lock(inv.CommandID, files); err != nil {
		return nil, err
	}
	return &Outcome{Result: fmt.Sprintf("Locked %d file(s)", len(files))}, nil
}

func (p *Processor) unlockFiles(_ context.Context, inv *Invocation) (*Outcome, error) {
	files := payloadStrings(inv.Payload)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files given", ErrInvalidPayload)
	}
	n := p.locks.Unlock(files)
	return &Outcome{Result: fmt.Sprintf("Unlocked %d file(s)", n)}, nil
}

func (p *Processor) info(_ context.Context, _ *Invocation) (*Outcome, error) {
	st := p.GetStatus()
	return &Outcome{Result: InfoResult{
		Commands:    p.Commands(),
		Status:      st.State,
		Progress:    st.Progress,
		LockedFiles: p.locks.Held(),
		Uptime:      p.stats.Uptime().Round(time.Second).String(),
	}}, nil
}
