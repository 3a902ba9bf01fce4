package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Environment is the deployment stage
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Analysis providers
const (
	ProviderHTTP = "http"
	ProviderMock = "mock"
)

// Config holds all application configuration
type Config struct {
	Environment Environment `yaml:"environment"`
	LogLevel    string      `yaml:"log_level"`

	Server        Server        `yaml:"server"`
	Database      Database      `yaml:"database"`
	AWS           AWS           `yaml:"aws"`
	Storage       Storage       `yaml:"storage"`
	Analysis      Analysis      `yaml:"analysis"`
	Auth          Auth          `yaml:"auth"`
	Exports       Exports       `yaml:"exports"`
	CORS          CORS          `yaml:"cors"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
	Observability Observability `yaml:"observability"`
	Lambda        Lambda        `yaml:"lambda"`

	// Sources lists where values were loaded from, lowest priority first
	Sources []string `yaml:"-"`
}

// Server configuration
type Server struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// Database selects and configures the persistent store
type Database struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	TableName  string `yaml:"table_name"`
}

// AWS configuration
type AWS struct {
	Region       string `yaml:"region"`
	EventBusName string `yaml:"event_bus_name"`
}

// Storage selects where images and export artifacts live
type Storage struct {
	Backend   string `yaml:"backend"`
	LocalRoot string `yaml:"local_root"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Prefix  string `yaml:"s3_prefix"`
}

// Analysis configures the vision model endpoint
type Analysis struct {
	Provider    string        `yaml:"provider"`
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Auth configures session tokens
type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTIssuer string        `yaml:"jwt_issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Exports configures artifact retention
type Exports struct {
	RetentionDays int `yaml:"retention_days"`
}

// Retention returns the retention period as a duration
func (e Exports) Retention() time.Duration {
	return time.Duration(e.RetentionDays) * 24 * time.Hour
}

// CORS configuration
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimit configures the per-IP and per-user sliding windows
type RateLimit struct {
	IPRequests   int           `yaml:"ip_requests"`
	UserRequests int           `yaml:"user_requests"`
	Window       time.Duration `yaml:"window"`
}

// Observability configures metrics and tracing
type Observability struct {
	ServiceName      string  `yaml:"service_name"`
	EnableMetrics    bool    `yaml:"enable_metrics"`
	MetricsNamespace string  `yaml:"metrics_namespace"`
	EnableTracing    bool    `yaml:"enable_tracing"`
	OTLPEndpoint     string  `yaml:"otlp_endpoint"`
	SampleRate       float64 `yaml:"sample_rate"`
	EnableXRay       bool    `yaml:"enable_xray"`
}

// Lambda configuration
type Lambda struct {
	IsLambda     bool   `yaml:"is_lambda"`
	FunctionName string `yaml:"function_name"`
}

// Defaults returns the configuration used before any file or variable is read
func Defaults() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  16 << 20,
		},
		Database: Database{
			Driver:     DriverSQLite,
			SQLitePath: "data/scribe.db",
			TableName:  "scribe",
		},
		AWS: AWS{
			Region: "us-west-2",
		},
		Storage: Storage{
			Backend:   StorageLocal,
			LocalRoot: "data/files",
		},
		Analysis: Analysis{
			Provider:    ProviderHTTP,
			Endpoint:    "https://ark.cn-beijing.volces.com/api/v3",
			Model:       "doubao-seed-1-6-flash-250715",
			Temperature: 0.3,
			MaxTokens:   4096,
			Timeout:     120 * time.Second,
		},
		Auth: Auth{
			JWTIssuer: "scribe",
			TokenTTL:  30 * 24 * time.Hour,
		},
		Exports: Exports{
			RetentionDays: 30,
		},
		CORS: CORS{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		RateLimit: RateLimit{
			IPRequests:   300,
			UserRequests: 120,
			Window:       time.Minute,
		},
		Observability: Observability{
			ServiceName:      "scribe-api",
			MetricsNamespace: "scribe",
			OTLPEndpoint:     "localhost:4317",
			SampleRate:       0.1,
		},
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverDynamoDB:
		if c.Database.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalRoot == "" {
			return fmt.Errorf("STORAGE_DIR is required for local storage")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.Analysis.Provider {
	case ProviderHTTP:
		if c.Analysis.Endpoint == "" {
			return fmt.Errorf("ANALYSIS_ENDPOINT is required")
		}
	case ProviderMock:
		if c.IsProduction() {
			return fmt.Errorf("the mock analysis provider cannot run in production")
		}
	default:
		return fmt.Errorf("unknown ANALYSIS_PROVIDER %q", c.Analysis.Provider)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Exports.RetentionDays < 1 {
		return fmt.Errorf("EXPORT_RETENTION_DAYS must be at least 1")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.IPRequests <= 0 || c.RateLimit.UserRequests <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}
