package analysis

import (
	"context"
	"errors"
	"time"

	"scribe/application/ports"
	pkgerrors "scribe/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the provider circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold and MinRequests decide when the breaker trips
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerProvider fails fast while the wrapped provider keeps failing.
// It never retries.
type BreakerProvider struct {
	next   ports.AnalysisProvider
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ ports.AnalysisProvider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps next with a circuit breaker
func NewBreakerProvider(next ports.AnalysisProvider, config BreakerConfig, logger *zap.Logger) *BreakerProvider {
	b := &BreakerProvider{next: next, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: countsAsSuccess,
	})
	return b
}

// countsAsSuccess keeps caller-side problems from tripping the breaker: a
// bad key, an oversized image or a reply that is not the schema say nothing
// about the vendor's health.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		switch appErr.Type {
		case pkgerrors.ErrorTypeValidation, pkgerrors.ErrorTypeAnalysis, pkgerrors.ErrorTypeUnavailable:
			return true
		}
	}
	return false
}

// Analyze forwards to the wrapped provider unless the breaker is open
func (b *BreakerProvider) Analyze(ctx context.Context, req ports.AnalysisRequest) (*ports.AnalysisReply, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.next.Analyze(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Warn("Analysis rejected by circuit breaker", zap.String("state", b.cb.State().String()))
			return nil, pkgerrors.NewUnavailableError("analysis").WithCause(err)
		}
		return nil, err
	}
	return result.(*ports.AnalysisReply), nil
}

// State reports the breaker state for readiness checks
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}
