package rest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/internal/master"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

func setupTestServer(t *testing.T, opts ...master.RegistryOption) (*Server, *master.Registry) {
	t.Helper()
	registry := master.NewRegistry(append([]master.RegistryOption{master.WithLogger(zap.NewNop())}, opts...)...)
	return NewServer(registry, DefaultServerConfig(), zap.NewNop()), registry
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	v, err := utils.FromJSONBytes[T](data)
	require.NoError(t, err, string(data))
	return v
}

func TestHealthCheck(t *testing.T) {
	s, _ := setupTestServer(t)

	code, body := doRequest(t, s.App(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", decode[types.HealthResponse](t, body).Status)
}

func TestRegisterWorker(t *testing.T) {
	for _, path := range []string{"/api/worker/register", "/api/workernode/register"} {
		t.Run(path, func(t *testing.T) {
			s, registry := setupTestServer(t)

			code, body := doRequest(t, s.App(), http.MethodPost, path, `{"Url":"http://w1:5001"}`)
			require.Equal(t, http.StatusOK, code, string(body))

			node := decode[types.WorkerNode](t, body)
			assert.NotEmpty(t, node.ID)
			assert.Equal(t, "http://w1:5001", node.URL)
			assert.Equal(t, types.WorkerStatusActive, node.Status)
			assert.Equal(t, 1, registry.Count())
		})
	}
}

func TestRegisterWorkerBadRequests(t *testing.T) {
	s, registry := setupTestServer(t)

	code, body := doRequest(t, s.App(), http.MethodPost, "/api/worker/register", `{"url":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.True(t, decode[types.ErrorResponse](t, body).Error)

	code, body = doRequest(t, s.App(), http.MethodPost, "/api/worker/register", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON in request", decode[types.ErrorResponse](t, body).Message)

	assert.Zero(t, registry.Count())
}

func TestRegisterWorkerConflict(t *testing.T) {
	s, _ := setupTestServer(t, master.WithIDGenerator(func() string { return "fixed" }))

	code, _ := doRequest(t, s.App(), http.MethodPost, "/api/worker/register", `{"url":"http://a:1"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := doRequest(t, s.App(), http.MethodPost, "/api/worker/register", `{"url":"http://b:1"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, decode[types.ErrorResponse](t, body).Message, "registration conflict")
}

func TestListAndGetWorkers(t *testing.T) {
	s, registry := setupTestServer(t)
	a, _ := registry.RegisterWorker("http://a:1")
	b, _ := registry.RegisterWorker("http://b:1")

	for _, path := range []string{"/api/worker/list", "/api/workernode"} {
		code, body := doRequest(t, s.App(), http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, code)
		nodes := decode[[]types.WorkerNode](t, body)
		ids := []string{}
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
	}

	code, body := doRequest(t, s.App(), http.MethodGet, "/api/workernode/"+a.ID, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "http://a:1", decode[types.WorkerNode](t, body).URL)

	code, body = doRequest(t, s.App(), http.MethodGet, "/api/workernode/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, decode[types.ErrorResponse](t, body).Message, "nope")
}

func TestListWorkersEmpty(t *testing.T) {
	s, _ := setupTestServer(t)

	code, body := doRequest(t, s.App(), http.MethodGet, "/api/worker/list", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))
}

func TestHeartbeat(t *testing.T) {
	s, registry := setupTestServer(t)
	node, _ := registry.RegisterWorker("http://a:1")

	code, body := doRequest(t, s.App(), http.MethodPost, "/api/workernode/"+node.ID+"/heartbeat", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body)

	code, _ = doRequest(t, s.App(), http.MethodPost, "/api/workernode/unknown/heartbeat", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRemoveWorker(t *testing.T) {
	s, registry := setupTestServer(t)
	node, _ := registry.RegisterWorker("http://a:1")

	code, _ := doRequest(t, s.App(), http.MethodDelete, "/api/workernode/"+node.ID, "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Zero(t, registry.Count())

	code, _ = doRequest(t, s.App(), http.MethodDelete, "/api/workernode/"+node.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUnknownRoute(t *testing.T) {
	s, _ := setupTestServer(t)

	code, body := doRequest(t, s.App(), http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.True(t, decode[types.ErrorResponse](t, body).Error)
}

func TestCORSEnabled(t *testing.T) {
	registry := master.NewRegistry(master.WithLogger(zap.NewNop()))
	cfg := DefaultServerConfig()
	cfg.EnableCORS = true
	s := NewServer(registry, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
