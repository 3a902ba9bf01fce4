package di

import (
	"context"
	"database/sql"
	"fmt"

	"scribe/application/ports"
	"scribe/application/services"
	"scribe/infrastructure/analysis"
	"scribe/infrastructure/config"
	"scribe/infrastructure/messaging/eventbridge"
	"scribe/infrastructure/persistence/dynamodb"
	"scribe/infrastructure/persistence/sqlite"
	"scribe/infrastructure/storage"
	"scribe/interfaces/http/rest"
	"scribe/pkg/auth"
	pkgerrors "scribe/pkg/errors"
	"scribe/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogLevel parses the configured level. The watcher adjusts it at
// runtime.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("service", cfg.Observability.ServiceName))

	cleanup := func() {
		_ = logger.Sync()
	}
	return logger, cleanup, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Observability.EnableXRay {
		observability.InstrumentAWS(&awsCfg)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideS3Client creates an S3 client
func ProvideS3Client(awsCfg aws.Config) *awss3.Client {
	return awss3.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// Stores groups the repositories of the configured backend.
type Stores struct {
	Accounts    ports.AccountRepository
	Projects    ports.ProjectRepository
	Whiteboards ports.WhiteboardRepository
	Exports     ports.ExportRepository
	Ledger      ports.UsageLedger
	Ready       rest.ReadinessCheck
}

// ProvideStores opens the database selected by cfg.Database.Driver
func ProvideStores(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (*Stores, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using SQLite store", zap.String("path", cfg.Database.SQLitePath))
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close database", zap.Error(err))
			}
		}
		return sqliteStores(db, logger), cleanup, nil

	case config.DriverDynamoDB:
		table := cfg.Database.TableName
		logger.Info("Using DynamoDB store", zap.String("table", table))
		return &Stores{
			Accounts:    dynamodb.NewAccountRepository(client, table, logger),
			Projects:    dynamodb.NewProjectRepository(client, table, logger),
			Whiteboards: dynamodb.NewWhiteboardRepository(client, table, logger),
			Exports:     dynamodb.NewExportRepository(client, table, logger),
			Ledger:      dynamodb.NewUsageLedger(client, table, logger),
			Ready: func(ctx context.Context) error {
				_, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(table)})
				return err
			},
		}, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func sqliteStores(db *sql.DB, logger *zap.Logger) *Stores {
	return &Stores{
		Accounts:    sqlite.NewAccountRepository(db, logger),
		Projects:    sqlite.NewProjectRepository(db, logger),
		Whiteboards: sqlite.NewWhiteboardRepository(db, logger),
		Exports:     sqlite.NewExportRepository(db, logger),
		Ledger:      sqlite.NewUsageLedger(db, logger),
		Ready:       db.PingContext,
	}
}

// ProvideObjectStore creates the blob store for images and export artifacts
func ProvideObjectStore(cfg *config.Config, client *awss3.Client, logger *zap.Logger) (ports.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal:
		store, err := storage.NewLocalStore(cfg.Storage.LocalRoot, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageS3:
		return storage.NewS3Store(client, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// ProvideAnalysisProvider creates the vision model client. The HTTP provider
// sits behind a circuit breaker.
func ProvideAnalysisProvider(cfg *config.Config, logger *zap.Logger) ports.AnalysisProvider {
	if cfg.Analysis.Provider == config.ProviderMock {
		logger.Warn("Using mock analysis provider")
		return analysis.NewMockProvider()
	}

	acfg := analysis.DefaultConfig()
	acfg.Endpoint = cfg.Analysis.Endpoint
	acfg.APIKey = cfg.Analysis.APIKey
	acfg.Model = cfg.Analysis.Model
	acfg.Temperature = cfg.Analysis.Temperature
	acfg.MaxTokens = cfg.Analysis.MaxTokens
	acfg.Timeout = cfg.Analysis.Timeout

	provider := analysis.NewHTTPProvider(acfg, nil, logger)
	return analysis.NewBreakerProvider(provider, analysis.DefaultBreakerConfig("analysis"), logger)
}

// ProvideEventPublisher creates an event publisher. Without a bus name events
// are only logged.
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.AWS.EventBusName == "" {
		return eventbridge.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.AWS.EventBusName, logger)
}

// ProvideCollector creates the Prometheus collector, or nil when metrics are
// disabled
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Observability.EnableMetrics {
		return nil
	}
	return observability.NewCollector(cfg.Observability.MetricsNamespace)
}

// ProvideMetrics combines the collector with CloudWatch when running in Lambda
func ProvideMetrics(cfg *config.Config, collector *observability.Collector, client *awscloudwatch.Client, logger *zap.Logger) ports.Metrics {
	var sinks observability.Fanout
	if collector != nil {
		sinks = append(sinks, collector)
	}
	if cfg.Lambda.IsLambda {
		namespace := fmt.Sprintf("Scribe/%s", cfg.Environment)
		sinks = append(sinks, observability.NewCloudWatchMetrics(namespace, client, logger))
	}
	if len(sinks) == 0 {
		return observability.Nop{}
	}
	return sinks
}

// ProvideJWTConfig maps the auth settings onto the token config. Outside
// production a missing secret is replaced by a random one, so tokens do not
// survive a restart.
func ProvideJWTConfig(cfg *config.Config, logger *zap.Logger) auth.JWTConfig {
	secret := cfg.Auth.JWTSecret
	if secret == "" && !cfg.IsProduction() {
		logger.Warn("JWT_SECRET is not set, using a random secret")
		secret = uuid.NewString() + uuid.NewString()
	}
	return auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.Auth.JWTIssuer,
		TTL:       cfg.Auth.TokenTTL,
	}
}

// ProvideClock returns the wall clock
func ProvideClock() services.Clock {
	return services.SystemClock
}

// ProvideErrorHandler creates the boundary error handler; development builds
// include error causes in responses.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideTracer creates the X-Ray subsegment helper for the Lambda handler
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(cfg.Observability.ServiceName)
}
