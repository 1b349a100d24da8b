package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/internal/worker"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
)

type listenerFixture struct {
	listener  *Listener
	storage   *worker.Storage
	processor *worker.Processor
}

func setupTestListener(t *testing.T, opts ...worker.Option) *listenerFixture {
	t.Helper()
	storage := worker.NewStorage(zap.NewNop())
	base := []worker.Option{
		worker.WithLogger(zap.NewNop()),
		worker.WithTracker(storage),
		worker.WithWorkStep(1, 20*time.Millisecond),
	}
	processor := worker.NewProcessor(append(base, opts...)...)
	t.Cleanup(processor.Close)

	return &listenerFixture{
		listener:  NewListener(ListenerConfig{Address: "127.0.0.1:0"}, storage, processor, zap.NewNop()),
		storage:   storage,
		processor: processor,
	}
}

func (f *listenerFixture) post(t *testing.T, body string) (int, []byte) {
	t.Helper()
	return doRequest(t, f.listener.App(), http.MethodPost, CommandPath, body)
}

func TestListener_Ping(t *testing.T) {
	f := setupTestListener(t)

	code, body := f.post(t, `{"type":"PING","id":"p1"}`)
	require.Equal(t, http.StatusOK, code)

	resp := decode[types.CommandResponse](t, body)
	assert.True(t, resp.Success)
	assert.Equal(t, "p1", resp.CommandID)
	assert.Contains(t, resp.Result, "Pong!")

	info, ok := f.storage.TryGetCommand("p1")
	require.True(t, ok)
	assert.Equal(t, types.CommandStatusCompleted, info.Status)
}

func TestListener_MintsCommandID(t *testing.T) {
	f := setupTestListener(t)

	code, body := f.post(t, `{"type":"hello","payload":"Ada"}`)
	require.Equal(t, http.StatusOK, code)

	resp := decode[types.CommandResponse](t, body)
	require.NotEmpty(t, resp.CommandID)
	assert.Equal(t, "Hello, Ada! Greetings from Worker Node.", resp.Result)
	_, ok := f.storage.TryGetCommand(resp.CommandID)
	assert.True(t, ok)
}

func TestListener_AcceptsCommandIDAlias(t *testing.T) {
	f := setupTestListener(t)

	_, body := f.post(t, `{"Type":"ping","CommandId":"alias-1"}`)
	assert.Equal(t, "alias-1", decode[types.CommandResponse](t, body).CommandID)
}

func TestListener_ProtocolErrors(t *testing.T) {
	f := setupTestListener(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed", `{"type":`, "Invalid JSON in request"},
		{"empty body", ``, "Invalid JSON in request"},
		{"null", `null`, "Invalid command"},
		{"empty object", `{}`, "Invalid command"},
		{"blank type", `{"type":"  "}`, "Invalid command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := f.post(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			resp := decode[types.ErrorResponse](t, body)
			assert.True(t, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
	assert.Zero(t, f.storage.Len())
}

func TestListener_WrongVerbAndPath(t *testing.T) {
	f := setupTestListener(t)

	code, body := doRequest(t, f.listener.App(), http.MethodGet, CommandPath, "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.True(t, decode[types.ErrorResponse](t, body).Error)

	code, body = doRequest(t, f.listener.App(), http.MethodPost, "/api/command", `{"type":"ping"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.True(t, decode[types.ErrorResponse](t, body).Error)

	assert.Zero(t, f.storage.Len())
}

func TestListener_DuplicateID(t *testing.T) {
	f := setupTestListener(t)

	code, _ := f.post(t, `{"type":"ping","id":"dup"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := f.post(t, `{"type":"hello","id":"dup"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, decode[types.ErrorResponse](t, body).Message, "dup")
}

func TestListener_UnknownCommand(t *testing.T) {
	f := setupTestListener(t)

	code, body := f.post(t, `{"type":"unknown_x","id":"u1"}`)
	require.Equal(t, http.StatusOK, code)

	resp := decode[types.CommandResponse](t, body)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Status, "Unknown command")

	info, _ := f.storage.TryGetCommand("u1")
	assert.Equal(t, types.CommandStatusFailed, info.Status)
}

func TestListener_WorkerStatus(t *testing.T) {
	f := setupTestListener(t)

	_, body := f.post(t, `{"type":"status"}`)
	resp := decode[types.CommandResponse](t, body)
	assert.True(t, resp.Success)
	assert.Equal(t, string(types.WorkStateIdle), resp.Status)
	require.NotNil(t, resp.Progress)
	assert.Zero(t, *resp.Progress)
}

func TestListener_StartTrackedByStatus(t *testing.T) {
	f := setupTestListener(t)

	code, body := f.post(t, `{"type":"start","id":"job-1","payload":{"timestamp":"now"}}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, decode[types.CommandResponse](t, body).Success)

	// background work keeps its record Running
	info, _ := f.storage.TryGetCommand("job-1")
	assert.Equal(t, types.CommandStatusRunning, info.Status)

	_, body = f.post(t, `{"type":"status"}`)
	assert.Equal(t, string(types.WorkStateWorking), decode[types.CommandResponse](t, body).Status)

	_, body = f.post(t, `{"type":"status","payload":{"id":"job-1"}}`)
	resp := decode[types.CommandResponse](t, body)
	assert.True(t, resp.Success)
	assert.Equal(t, string(types.CommandStatusRunning), resp.Status)
	require.NotNil(t, resp.Progress)

	_, body = f.post(t, `{"type":"start"}`)
	second := decode[types.CommandResponse](t, body)
	assert.False(t, second.Success)
	assert.Contains(t, second.Status, "already working")
}

func TestListener_StatusOfUnknownTarget(t *testing.T) {
	f := setupTestListener(t)

	_, body := f.post(t, `{"type":"status","payload":"missing"}`)
	resp := decode[types.CommandResponse](t, body)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Status, "missing")
}

func TestListener_Cancel(t *testing.T) {
	f := setupTestListener(t)

	_, body := f.post(t, `{"type":"start","id":"job-2"}`)
	require.True(t, decode[types.CommandResponse](t, body).Success)

	_, body = f.post(t, `{"type":"cancel","payload":{"id":"job-2"}}`)
	resp := decode[types.CommandResponse](t, body)
	assert.True(t, resp.Success)
	assert.Equal(t, string(types.CommandStatusCancelled), resp.Status)

	info, _ := f.storage.TryGetCommand("job-2")
	assert.Equal(t, types.CommandStatusCancelled, info.Status)
	assert.True(t, info.CancellationRequested())

	require.Eventually(t, func() bool {
		return f.processor.GetStatus().State == types.WorkStateIdle
	}, time.Second, 5*time.Millisecond)

	// completed commands cannot be cancelled
	f.post(t, `{"type":"ping","id":"done"}`)
	_, body = f.post(t, `{"type":"cancel","payload":"done"}`)
	assert.False(t, decode[types.CommandResponse](t, body).Success)

	_, body = f.post(t, `{"type":"cancel"}`)
	assert.False(t, decode[types.CommandResponse](t, body).Success)
}

func TestListener_ServeWithConnectionLimit(t *testing.T) {
	storage := worker.NewStorage(zap.NewNop())
	processor := worker.NewProcessor(worker.WithLogger(zap.NewNop()), worker.WithTracker(storage))
	defer processor.Close()
	l := NewListener(ListenerConfig{MaxConnections: 2}, storage, processor, zap.NewNop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = l.Serve(ln) }()

	require.Eventually(t, func() bool { return l.Addr() != nil }, time.Second, 5*time.Millisecond)

	client := &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
		Timeout:   5 * time.Second,
	}
	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			body := fmt.Sprintf(`{"type":"ping","id":"c-%d"}`, i)
			resp, err := client.Post("http://"+ln.Addr().String()+CommandPath, "application/json", stringsReader(body))
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					err = fmt.Errorf("status %d", resp.StatusCode)
				}
			}
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, n, storage.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, l.Stop(ctx))
}
