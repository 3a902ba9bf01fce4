//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"scribe/application/services"
	"scribe/domain/render"
	"scribe/infrastructure/config"
	"scribe/interfaces/http/rest"
	"scribe/interfaces/http/rest/middleware"
	"scribe/pkg/auth"

	"github.com/google/wire"
)

// InfrastructureSet builds loggers, AWS clients and the stores
var InfrastructureSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideS3Client,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideStores,
	wire.FieldsOf(new(*Stores), "Accounts", "Projects", "Whiteboards", "Exports", "Ledger", "Ready"),
	ProvideObjectStore,
	ProvideAnalysisProvider,
	ProvideEventPublisher,
	ProvideCollector,
	ProvideMetrics,
	ProvideTracer,
)

// ServiceSet builds the application services
var ServiceSet = wire.NewSet(
	ProvideJWTConfig,
	auth.NewJWTGenerator,
	auth.NewJWTValidator,
	wire.Bind(new(services.TokenIssuer), new(*auth.JWTGenerator)),
	ProvideClock,
	render.DefaultRegistry,
	services.NewLedgerService,
	services.NewProjectService,
	services.NewAccountService,
	services.NewUploadService,
	services.NewAnalysisService,
	services.NewExportService,
	services.NewAdminService,
	services.NewDashboardService,
	wire.Struct(new(rest.Services), "*"),
)

// HTTPSet builds the router
var HTTPSet = wire.NewSet(
	ProvideErrorHandler,
	wire.Bind(new(middleware.TokenValidator), new(*auth.JWTValidator)),
	rest.NewRouter,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	InfrastructureSet,
	ServiceSet,
	HTTPSet,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
