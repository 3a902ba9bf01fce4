package services

import (
	"context"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/events"
	"scribe/domain/ledger"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// LedgerService fronts the usage ledger. Metered operations go through
// Consume, which the store executes as one conditional update.
type LedgerService struct {
	accounts  ports.AccountRepository
	ledger    ports.UsageLedger
	publisher ports.EventPublisher
	metrics   ports.Metrics
	clock     Clock
	logger    *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	accounts ports.AccountRepository,
	usage ports.UsageLedger,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	clock Clock,
	logger *zap.Logger,
) *LedgerService {
	if clock == nil {
		clock = SystemClock
	}
	return &LedgerService{
		accounts:  accounts,
		ledger:    usage,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
	}
}

// Authorize is the read-only check used before work that is charged later.
func (s *LedgerService) Authorize(ctx context.Context, accountID string) (ledger.Decision, *entities.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return ledger.Decision{}, nil, err
	}
	return ledger.Authorize(account, s.clock()), account, nil
}

// RequireAuthorized turns a negative Authorize into an authorization error.
func (s *LedgerService) RequireAuthorized(ctx context.Context, accountID string) (*entities.Account, error) {
	decision, account, err := s.Authorize(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, s.denied(account, decision)
	}
	return account, nil
}

// Consume charges one metered use of kind. A denial comes back as an
// authorization error carrying the account's usage.
func (s *LedgerService) Consume(ctx context.Context, accountID string, kind valueobjects.UsageKind) (ledger.Decision, error) {
	if !kind.Metered() {
		return ledger.Decision{}, pkgerrors.NewValidationError("usage kind " + string(kind) + " is not metered")
	}

	now := s.clock()
	decision, err := s.ledger.Consume(ctx, accountID, kind, now)
	if err != nil {
		return ledger.Decision{}, err
	}
	s.metrics.RecordConsume(kind, decision)

	if !decision.Allowed {
		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return decision, err
		}
		s.logger.Warn("Usage denied",
			zap.String("accountID", accountID),
			zap.String("kind", string(kind)),
			zap.String("reason", decision.Reason),
			zap.Int("freeUsesCount", account.FreeUsesCount),
		)
		return decision, s.denied(account, decision)
	}

	s.logger.Debug("Usage consumed",
		zap.String("accountID", accountID),
		zap.String("kind", string(kind)),
		zap.String("basis", string(decision.Basis)),
	)
	return decision, nil
}

// Record counts a use that is never metered.
func (s *LedgerService) Record(ctx context.Context, accountID string, kind valueobjects.UsageKind) error {
	return s.ledger.Record(ctx, accountID, kind, s.clock())
}

// Usage returns the usage screen of an account.
func (s *LedgerService) Usage(ctx context.Context, accountID string) (*ledger.Usage, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	usage := ledger.Snapshot(account, s.clock())
	return &usage, nil
}

// SetSubscription is the administrator's manual activation after verifying
// payment outside the system.
func (s *LedgerService) SetSubscription(ctx context.Context, adminID, accountID string, change ledger.SubscriptionChange) (*entities.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	ledger.SetSubscription(account, change, now)
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription changed",
		zap.String("accountID", accountID),
		zap.String("adminID", adminID),
		zap.String("type", string(change.Type)),
		zap.String("paymentStatus", string(change.PaymentStatus)),
		zap.Bool("activate", change.Activate),
	)
	publishEvent(ctx, s.publisher, s.logger, events.NewSubscriptionChanged(
		account.ID, adminID, account.SubscriptionType, account.PaymentStatus, account.SubscriptionExpiresAt, now,
	))
	return account, nil
}

func (s *LedgerService) denied(account *entities.Account, decision ledger.Decision) error {
	usage := ledger.Snapshot(account, s.clock())
	return pkgerrors.NewAuthorizationDeniedError(decision.Reason, usage.Details())
}
