package routes

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kippnorcal/zoom/internal/config"
	"github.com/kippnorcal/zoom/internal/connector"
	"github.com/kippnorcal/zoom/internal/dto"
	"github.com/kippnorcal/zoom/internal/handlers"
	"github.com/kippnorcal/zoom/internal/loader"
	"github.com/kippnorcal/zoom/internal/store"
)

const testSecret = "ops-secret"

type gateLoader struct{ gate chan struct{} }

func (g *gateLoader) Entity() string { return "users" }

func (g *gateLoader) Load(ctx context.Context) (loader.Result, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return loader.Result{}, ctx.Err()
	}
	return loader.Result{Entity: "users", Records: 2}, nil
}

type testApp struct {
	app    *fiber.App
	store  *store.Store
	runner *connector.Runner
	gate   chan struct{}
}

func newTestApp(t *testing.T, secret string) *testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ops.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := store.New(db, "")
	require.NoError(t, s.Migrate(context.Background()))

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := make(chan struct{})
	orch := connector.NewOrchestrator([]loader.Loader{&gateLoader{gate: gate}}, quiet)
	runner := connector.NewRunner(orch, s, nil, quiet)
	t.Cleanup(func() {
		select {
		case <-gate:
		default:
			close(gate)
		}
		runner.Wait()
	})

	app := fiber.New()
	Setup(app, &config.Config{AdminJWTSecret: secret},
		handlers.NewHealthHandler(db, runner, orch.Entities()),
		handlers.NewRunHandler(context.Background(), s, runner),
	)
	return &testApp{app: app, store: s, runner: runner, gate: gate}
}

func (a *testApp) release() {
	close(a.gate)
	a.runner.Wait()
}

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func do(t *testing.T, app *fiber.App, method, path, token string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealth(t *testing.T) {
	a := newTestApp(t, testSecret)

	resp, body := do(t, a.app, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.DB)
	assert.False(t, health.Running)
	assert.Equal(t, []string{"users"}, health.Entities)
}

func TestTriggerRequiresToken(t *testing.T) {
	a := newTestApp(t, testSecret)

	resp, _ := do(t, a.app, http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, a.app, http.MethodPost, "/api/runs", signedToken(t, "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTriggerRequiresSubject(t *testing.T) {
	a := newTestApp(t, testSecret)
	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	resp, _ := do(t, a.app, http.MethodPost, "/api/runs", anonymous)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTriggerStartsRunAndRejectsOverlap(t *testing.T) {
	a := newTestApp(t, testSecret)
	token := signedToken(t, testSecret)

	resp, body := do(t, a.app, http.MethodPost, "/api/runs", token)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started dto.RunResponse
	require.NoError(t, json.Unmarshal(body, &started))
	assert.Equal(t, "running", started.Status)
	assert.Equal(t, "manual", started.Trigger)

	resp, _ = do(t, a.app, http.MethodPost, "/api/runs", token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	a.release()

	resp, body = do(t, a.app, http.MethodGet, "/api/runs/"+started.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var finished dto.RunResponse
	require.NoError(t, json.Unmarshal(body, &finished))
	assert.Equal(t, "succeeded", finished.Status)
	assert.NotNil(t, finished.FinishedAt)
	assert.Contains(t, string(finished.Stats), `"users"`)

	resp, body = do(t, a.app, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list dto.RunListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, started.ID, list.Runs[0].ID)
}

func TestGetUnknownRun(t *testing.T) {
	a := newTestApp(t, testSecret)

	resp, body := do(t, a.app, http.MethodGet, "/api/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.True(t, errResp.Error)
}

func TestTriggerDisabledWithoutSecret(t *testing.T) {
	a := newTestApp(t, "")

	resp, _ := do(t, a.app, http.MethodPost, "/api/runs", signedToken(t, testSecret))
	assert.NotEqual(t, http.StatusAccepted, resp.StatusCode)

	runs, err := a.store.Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
