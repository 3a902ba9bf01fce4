// Package di wires the application together with google/wire.
package di

import (
	"scribe/infrastructure/config"
	"scribe/interfaces/http/rest"
	"scribe/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	LogLevel zap.AtomicLevel
	Services rest.Services
	Router   *rest.Router
	Tracer   *observability.Tracer
}

// Reload applies a changed configuration to the parts that support it
func (c *Container) Reload(cfg *config.Config) {
	if level, err := ProvideLogLevel(cfg); err == nil {
		c.LogLevel.SetLevel(level.Level())
	} else {
		c.Logger.Warn("Ignoring invalid log level", zap.String("level", cfg.LogLevel))
	}
	c.Router.Reload(cfg)
}
