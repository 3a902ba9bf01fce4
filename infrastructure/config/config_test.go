package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"scribe/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := config.NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, config.Development, cfg.Environment)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, config.StorageLocal, cfg.Storage.Backend)
	assert.EqualValues(t, 16<<20, cfg.Server.MaxUploadBytes)
	assert.Equal(t, 30*24*time.Hour, cfg.Exports.Retention())
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"defaults", "environment"}, cfg.Sources)
}

func TestLoader_YAMLThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	writeFile(t, path, `
log_level: debug
database:
  driver: dynamodb
  table_name: from-yaml
storage:
  backend: s3
  s3_bucket: scribe-files
exports:
  retention_days: 7
rate_limit:
  window: 30s
cors:
  allowed_origins: ["https://app.example.com"]
`)
	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, config.DriverDynamoDB, cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.Database.TableName)
	assert.Equal(t, "scribe-files", cfg.Storage.S3Bucket)
	assert.Equal(t, 7, cfg.Exports.RetentionDays)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"defaults", path, "environment"}, cfg.Sources)
}

func TestLoader_DotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "EXPORT_RETENTION_DAYS=9\nLOG_LEVEL=warn\n")
	t.Setenv("LOG_LEVEL", "error")
	// t.Setenv restores the variable afterwards; godotenv sets it directly
	t.Setenv("EXPORT_RETENTION_DAYS", "")
	require.NoError(t, os.Unsetenv("EXPORT_RETENTION_DAYS"))

	cfg, err := config.NewLoader("", envFile).Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Exports.RetentionDays)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoader_EnvDurations(t *testing.T) {
	t.Setenv("ANALYSIS_TIMEOUT", "45")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := config.NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*config.Config) {}},
		{
			name:    "production needs a JWT secret",
			mutate:  func(c *config.Config) { c.Environment = config.Production },
			wantErr: "JWT_SECRET",
		},
		{
			name: "production with secret",
			mutate: func(c *config.Config) {
				c.Environment = config.Production
				c.Auth.JWTSecret = "s3cret"
			},
		},
		{
			name:    "unknown environment",
			mutate:  func(c *config.Config) { c.Environment = "qa" },
			wantErr: "unknown environment",
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.LogLevel = "loud" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *config.Config) { c.Database.Driver = "postgres" },
			wantErr: "DB_DRIVER",
		},
		{
			name: "dynamodb needs a table",
			mutate: func(c *config.Config) {
				c.Database.Driver = config.DriverDynamoDB
				c.Database.TableName = ""
			},
			wantErr: "TABLE_NAME",
		},
		{
			name:    "s3 needs a bucket",
			mutate:  func(c *config.Config) { c.Storage.Backend = config.StorageS3 },
			wantErr: "S3_BUCKET",
		},
		{
			name: "mock provider is not for production",
			mutate: func(c *config.Config) {
				c.Environment = config.Production
				c.Auth.JWTSecret = "s3cret"
				c.Analysis.Provider = config.ProviderMock
			},
			wantErr: "mock",
		},
		{
			name:    "retention at least a day",
			mutate:  func(c *config.Config) { c.Exports.RetentionDays = 0 },
			wantErr: "EXPORT_RETENTION_DAYS",
		},
		{
			name:    "rate limits positive",
			mutate:  func(c *config.Config) { c.RateLimit.Window = 0 },
			wantErr: "rate limits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatcher_ReloadNotifiesAndRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	writeFile(t, path, "log_level: info\n")

	loader := config.NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(loader, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	changes := make(chan *config.Config, 4)
	w.OnChange(func(c *config.Config) { changes <- c })

	writeFile(t, path, "log_level: debug\n")
	require.NoError(t, w.Reload())
	assert.Equal(t, "debug", (<-changes).LogLevel)
	assert.Equal(t, "debug", w.Current().LogLevel)

	writeFile(t, path, "log_level: nonsense\n")
	assert.Error(t, w.Reload())
	assert.Equal(t, "debug", w.Current().LogLevel)
}

func TestWatcher_PicksUpFileWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	writeFile(t, path, "log_level: info\n")

	loader := config.NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(loader, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, path, "log_level: warn\n")
	assert.Eventually(t, func() bool {
		return w.Current().LogLevel == "warn"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcher_NoFile(t *testing.T) {
	w, err := config.NewWatcher(config.NewLoader(""), config.Defaults(), zap.NewNop())
	require.NoError(t, err)
	w.Stop()
	assert.Equal(t, "info", w.Current().LogLevel)
}
