package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"scribe/infrastructure/config"
	"scribe/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.LogLevel = "error"
	cfg.Database.SQLitePath = filepath.Join(dir, "scribe.db")
	cfg.Storage.LocalRoot = filepath.Join(dir, "files")
	cfg.Analysis.Provider = config.ProviderMock
	cfg.Auth.JWTSecret = "wire-test"
	cfg.Observability.EnableMetrics = true
	return cfg
}

func TestInitializeContainer(t *testing.T) {
	cfg := testConfig(t)

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.Same(t, cfg, container.Config)
	assert.NotNil(t, container.Services.Accounts)
	assert.NotNil(t, container.Services.Admin)
	assert.NotNil(t, container.Tracer)

	handler := container.Router.Setup()
	for _, path := range []string{"/health", "/ready", "/metrics", "/api/payment/plans"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestInitializeContainerRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "postgres"

	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestContainerReloadChangesLogLevel(t *testing.T) {
	cfg := testConfig(t)
	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	next := *cfg
	next.LogLevel = "debug"
	container.Reload(&next)
	assert.Equal(t, zapcore.DebugLevel, container.LogLevel.Level())

	next.LogLevel = "loud"
	container.Reload(&next)
	assert.Equal(t, zapcore.DebugLevel, container.LogLevel.Level())
}

func TestProvideMetrics(t *testing.T) {
	cfg := config.Defaults()
	logger := zap.NewNop()

	assert.IsType(t, observability.Nop{}, ProvideMetrics(cfg, nil, nil, logger))

	collector := observability.NewCollector("scribe_di")
	sinks, ok := ProvideMetrics(cfg, collector, nil, logger).(observability.Fanout)
	require.True(t, ok)
	assert.Len(t, sinks, 1)

	cfg.Lambda.IsLambda = true
	sinks, ok = ProvideMetrics(cfg, collector, nil, logger).(observability.Fanout)
	require.True(t, ok)
	assert.Len(t, sinks, 2)
}

func TestProvideJWTConfigFallsBackOutsideProduction(t *testing.T) {
	cfg := config.Defaults()
	got := ProvideJWTConfig(cfg, zap.NewNop())
	assert.NotEmpty(t, got.SecretKey)

	cfg.Environment = config.Production
	got = ProvideJWTConfig(cfg, zap.NewNop())
	assert.Empty(t, got.SecretKey)
}
