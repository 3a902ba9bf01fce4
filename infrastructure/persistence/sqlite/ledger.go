package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// coveredClause matches accounts with their own key or an unexpired paid
// plan. Its single parameter is the current time.
const coveredClause = `(custom_api_key <> '' OR
	(subscription_type <> 'free' AND subscription_expires_at IS NOT NULL AND subscription_expires_at > ?))`

// UsageLedger implements ports.UsageLedger with conditional UPDATEs.
type UsageLedger struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.UsageLedger = (*UsageLedger)(nil)

// NewUsageLedger creates a new UsageLedger
func NewUsageLedger(db *sql.DB, logger *zap.Logger) *UsageLedger {
	return &UsageLedger{db: db, logger: logger}
}

func counterColumn(kind valueobjects.UsageKind) string {
	switch kind {
	case valueobjects.UsageImage:
		return "images_processed"
	case valueobjects.UsageExport:
		return "exports_generated"
	default:
		return "projects_created"
	}
}

// Consume charges a covered account first and a free-quota account second;
// each step is one statement so the check and the increment cannot split.
func (l *UsageLedger) Consume(ctx context.Context, accountID string, kind valueobjects.UsageKind, now time.Time) (ledger.Decision, error) {
	if !kind.Metered() {
		return ledger.Decision{}, pkgerrors.NewValidationError(fmt.Sprintf("usage kind %q is not metered", kind))
	}
	col := counterColumn(kind)
	stamp := formatTime(now)

	var customKey string
	err := l.db.QueryRowContext(ctx, fmt.Sprintf(`UPDATE accounts SET %[1]s = %[1]s + 1, updated_at = ?
		WHERE id = ? AND %[2]s
		RETURNING custom_api_key`, col, coveredClause),
		stamp, accountID, stamp).Scan(&customKey)
	switch {
	case err == nil:
		if customKey != "" {
			return ledger.Allowed(ledger.BasisCustomKey), nil
		}
		return ledger.Allowed(ledger.BasisSubscription), nil
	case !errors.Is(err, sql.ErrNoRows):
		return ledger.Decision{}, l.failed(accountID, kind, err)
	}

	res, err := l.db.ExecContext(ctx, fmt.Sprintf(`UPDATE accounts
		SET %[1]s = %[1]s + 1, free_uses_count = free_uses_count + 1, updated_at = ?
		WHERE id = ? AND NOT %[2]s AND free_uses_count < ?`, col, coveredClause),
		stamp, accountID, stamp, valueobjects.FreeUseLimit)
	if err != nil {
		return ledger.Decision{}, l.failed(accountID, kind, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return ledger.Decision{}, l.failed(accountID, kind, err)
	} else if n == 1 {
		return ledger.Allowed(ledger.BasisFreeQuota), nil
	}

	var exists bool
	if err := l.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?)`, accountID).Scan(&exists); err != nil {
		return ledger.Decision{}, l.failed(accountID, kind, err)
	}
	if !exists {
		return ledger.Decision{}, pkgerrors.NewNotFoundError("account")
	}
	return ledger.Denied(pkgerrors.ReasonUsageLimitExceeded), nil
}

// Record increments the counter of an unmetered kind.
func (l *UsageLedger) Record(ctx context.Context, accountID string, kind valueobjects.UsageKind, now time.Time) error {
	if kind.Metered() {
		return pkgerrors.NewValidationError(fmt.Sprintf("usage kind %q is metered", kind))
	}
	col := counterColumn(kind)
	res, err := l.db.ExecContext(ctx, fmt.Sprintf(`UPDATE accounts SET %[1]s = %[1]s + 1, updated_at = ? WHERE id = ?`, col),
		formatTime(now), accountID)
	if err != nil {
		return l.failed(accountID, kind, err)
	}
	return requireRow(res, "account")
}

func (l *UsageLedger) failed(accountID string, kind valueobjects.UsageKind, err error) error {
	l.logger.Error("Usage ledger update failed",
		zap.String("accountID", accountID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return pkgerrors.NewDatabaseError("consume usage", err)
}
