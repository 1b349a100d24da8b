package worker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
)

func newTestStorage() *Storage {
	return NewStorage(zap.NewNop())
}

func envelope(id string) *types.CommandEnvelope {
	return &types.CommandEnvelope{Type: types.TypePing, CommandID: id, Payload: "payload-" + id}
}

func TestStorage_AddCommand(t *testing.T) {
	s := newTestStorage()

	assert.True(t, s.AddCommand(envelope("a")))
	assert.False(t, s.AddCommand(&types.CommandEnvelope{Type: types.TypeHello, CommandID: "a", Payload: "other"}))
	assert.False(t, s.AddCommand(nil))
	assert.False(t, s.AddCommand(&types.CommandEnvelope{Type: types.TypePing}))

	info, ok := s.TryGetCommand("a")
	require.True(t, ok)
	assert.Equal(t, types.CommandStatusRunning, info.Status)
	assert.Equal(t, "payload-a", info.Command.Payload)
	assert.Equal(t, types.TypePing, info.Command.Type)
	assert.False(t, info.CancellationRequested())
	assert.Equal(t, 1, s.Len())
}

func TestStorage_UnknownIDs(t *testing.T) {
	s := newTestStorage()

	assert.False(t, s.UpdateStatus("missing", types.CommandStatusCompleted))
	assert.False(t, s.UpdateProgress("missing", 10))
	assert.False(t, s.CancelCommand("missing"))
	_, ok := s.TryGetCommand("missing")
	assert.False(t, ok)
	_, ok = s.Handle("missing")
	assert.False(t, ok)
}

func TestStorage_CancelCommand(t *testing.T) {
	s := newTestStorage()
	require.True(t, s.AddCommand(envelope("c")))

	handle, ok := s.Handle("c")
	require.True(t, ok)
	require.NoError(t, handle.Err())

	assert.True(t, s.CancelCommand("c"))

	info, ok := s.TryGetCommand("c")
	require.True(t, ok)
	assert.Equal(t, types.CommandStatusCancelled, info.Status)
	assert.True(t, info.CancellationRequested())
	assert.Error(t, handle.Err())

	// second cancel is a no-op
	assert.True(t, s.CancelCommand("c"))
}

func TestStorage_TerminalStatesAreFinal(t *testing.T) {
	s := newTestStorage()
	require.True(t, s.AddCommand(envelope("done")))

	assert.True(t, s.UpdateStatus("done", types.CommandStatusCompleted))
	assert.False(t, s.UpdateStatus("done", types.CommandStatusRunning))
	assert.False(t, s.UpdateStatus("done", types.CommandStatusFailed))
	assert.False(t, s.CancelCommand("done"))
	assert.False(t, s.UpdateProgress("done", 50))

	info, _ := s.TryGetCommand("done")
	assert.Equal(t, types.CommandStatusCompleted, info.Status)
	assert.Equal(t, float64(100), info.Progress)
	assert.False(t, info.CancellationRequested())

	// the handle is released on the terminal transition
	handle, _ := s.Handle("done")
	assert.Error(t, handle.Err())
}

func TestStorage_UpdateProgressClamps(t *testing.T) {
	s := newTestStorage()
	require.True(t, s.AddCommand(envelope("p")))

	assert.True(t, s.UpdateProgress("p", 140))
	info, _ := s.TryGetCommand("p")
	assert.Equal(t, float64(100), info.Progress)

	assert.True(t, s.UpdateProgress("p", -3))
	info, _ = s.TryGetCommand("p")
	assert.Equal(t, float64(0), info.Progress)
}

func TestStorage_GetActiveCommands(t *testing.T) {
	s := newTestStorage()
	for _, id := range []string{"run", "complete", "fail", "cancel"} {
		require.True(t, s.AddCommand(envelope(id)))
	}
	s.UpdateStatus("complete", types.CommandStatusCompleted)
	s.UpdateStatus("fail", types.CommandStatusFailed)
	s.CancelCommand("cancel")

	active := s.GetActiveCommands()
	require.Len(t, active, 1)
	assert.Equal(t, "run", active[0].CommandID)
}

func TestStorage_Clear(t *testing.T) {
	s := newTestStorage()
	require.True(t, s.AddCommand(envelope("x")))
	require.True(t, s.AddCommand(envelope("y")))
	hx, _ := s.Handle("x")
	hy, _ := s.Handle("y")

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Error(t, hx.Err())
	assert.Error(t, hy.Err())
	assert.Empty(t, s.GetActiveCommands())
}

func TestStorage_ConcurrentAdds(t *testing.T) {
	const n = 100
	s := newTestStorage()

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			assert.True(t, s.AddCommand(envelope(fmt.Sprintf("cmd-%d", i))))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, s.Len())
	for i := 0; i < n; i++ {
		_, ok := s.TryGetCommand(fmt.Sprintf("cmd-%d", i))
		assert.True(t, ok)
	}
	assert.Len(t, s.GetActiveCommands(), n)
}

func TestStorage_ConcurrentMixedOperations(t *testing.T) {
	const n = 100
	s := newTestStorage()
	for i := 0; i < n; i++ {
		require.True(t, s.AddCommand(envelope(fmt.Sprintf("m-%d", i))))
	}

	var wg sync.WaitGroup
	wg.Add(3 * n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("m-%d", i)
		go func() { defer wg.Done(); s.UpdateProgress(id, 50) }()
		go func() { defer wg.Done(); s.CancelCommand(id) }()
		go func() { defer wg.Done(); s.GetActiveCommands() }()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		info, ok := s.TryGetCommand(fmt.Sprintf("m-%d", i))
		require.True(t, ok)
		assert.Equal(t, types.CommandStatusCancelled, info.Status)
	}
}
