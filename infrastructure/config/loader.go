// Package config loads the API configuration from defaults, an optional
// .env file, an optional YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader builds a Config from its layered sources. It is reused by the
// watcher to reload the YAML file.
type Loader struct {
	// path is the YAML file; empty means none
	path string
	// envFiles are dotenv files read once, before the first load
	envFiles []string
}

// NewLoader creates a loader for the YAML file at path
func NewLoader(path string, envFiles ...string) *Loader {
	return &Loader{path: path, envFiles: envFiles}
}

// Path returns the YAML file the loader reads
func (l *Loader) Path() string {
	return l.path
}

// LoadConfig loads configuration using CONFIG_FILE and ./.env
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return NewLoader(os.Getenv("CONFIG_FILE")).Load()
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

// Load reads every source and validates the result
func (l *Loader) Load() (*Config, error) {
	if err := loadDotEnv(l.envFiles...); err != nil {
		return nil, err
	}

	cfg := Defaults()
	cfg.Sources = []string{"defaults"}

	if l.path != "" {
		if err := loadFile(l.path, cfg); err != nil {
			return nil, err
		}
		cfg.Sources = append(cfg.Sources, l.path)
	}

	applyEnv(cfg)
	cfg.Sources = append(cfg.Sources, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv exports variables from the given files without overriding
// variables already set. Missing files are skipped.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables; a variable that is unset keeps
// the value already loaded.
func applyEnv(cfg *Config) {
	cfg.Environment = Environment(getEnv("ENVIRONMENT", string(cfg.Environment)))
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Server.Address = getEnv("SERVER_ADDRESS", cfg.Server.Address)
	cfg.Server.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(cfg.Server.MaxUploadBytes)))

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)
	cfg.Database.TableName = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", cfg.Database.TableName))

	cfg.AWS.Region = getEnv("AWS_REGION", cfg.AWS.Region)
	cfg.AWS.EventBusName = getEnv("EVENT_BUS_NAME", cfg.AWS.EventBusName)

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.LocalRoot = getEnv("STORAGE_DIR", cfg.Storage.LocalRoot)
	cfg.Storage.S3Bucket = getEnv("S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3Prefix = getEnv("S3_PREFIX", cfg.Storage.S3Prefix)

	cfg.Analysis.Provider = getEnv("ANALYSIS_PROVIDER", cfg.Analysis.Provider)
	cfg.Analysis.Endpoint = getEnv("ANALYSIS_ENDPOINT", cfg.Analysis.Endpoint)
	cfg.Analysis.APIKey = getEnv("ANALYSIS_API_KEY", cfg.Analysis.APIKey)
	cfg.Analysis.Model = getEnv("ANALYSIS_MODEL", cfg.Analysis.Model)
	cfg.Analysis.Timeout = getEnvDuration("ANALYSIS_TIMEOUT", cfg.Analysis.Timeout)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getEnv("JWT_ISSUER", cfg.Auth.JWTIssuer)
	cfg.Auth.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.Auth.TokenTTL)

	cfg.Exports.RetentionDays = getEnvInt("EXPORT_RETENTION_DAYS", cfg.Exports.RetentionDays)
	cfg.CORS.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)

	cfg.RateLimit.IPRequests = getEnvInt("RATE_LIMIT_IP", cfg.RateLimit.IPRequests)
	cfg.RateLimit.UserRequests = getEnvInt("RATE_LIMIT_USER", cfg.RateLimit.UserRequests)
	cfg.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)

	cfg.Observability.EnableMetrics = getEnvBool("ENABLE_METRICS", cfg.Observability.EnableMetrics)
	cfg.Observability.EnableTracing = getEnvBool("ENABLE_TRACING", cfg.Observability.EnableTracing)
	cfg.Observability.OTLPEndpoint = getEnv("OTLP_ENDPOINT", cfg.Observability.OTLPEndpoint)
	cfg.Observability.EnableXRay = getEnvBool("ENABLE_XRAY", cfg.Observability.EnableXRay)
	cfg.Observability.MetricsNamespace = getEnv("METRICS_NAMESPACE", cfg.Observability.MetricsNamespace)

	cfg.Lambda.FunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", cfg.Lambda.FunctionName)
	cfg.Lambda.IsLambda = getEnvBool("IS_LAMBDA", cfg.Lambda.IsLambda || cfg.Lambda.FunctionName != "")
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
