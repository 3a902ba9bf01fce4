package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

const accountColumns = `id, email, username, password_hash, display_name, preferred_language, theme, is_admin,
	free_uses_count, subscription_type, subscription_expires_at, payment_status, requested_plan, custom_api_key,
	images_processed, exports_generated, projects_created, created_at, updated_at, last_login`

// AccountRepository implements ports.AccountRepository on SQLite
type AccountRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *sql.DB, logger *zap.Logger) *AccountRepository {
	return &AccountRepository{db: db, logger: logger}
}

func scanAccount(row scanner) (*entities.Account, error) {
	var (
		a                           entities.Account
		subType, payment, requested string
		expires, lastLogin          sql.NullString
		createdAt, updatedAt        string
	)
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.DisplayName, &a.PreferredLanguage, &a.Theme, &a.IsAdmin,
		&a.FreeUsesCount, &subType, &expires, &payment, &requested, &a.CustomAPIKey,
		&a.ImagesProcessed, &a.ExportsGenerated, &a.ProjectsCreated, &createdAt, &updatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	a.SubscriptionType = valueobjects.SubscriptionType(subType)
	a.PaymentStatus = valueobjects.PaymentStatus(payment)
	a.RequestedPlan = valueobjects.SubscriptionType(requested)
	a.SubscriptionExpiresAt = parseNullTime(expires)
	a.LastLogin = parseNullTime(lastLogin)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// Create inserts an account; a taken email is a conflict.
func (r *AccountRepository) Create(ctx context.Context, a *entities.Account) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Username, a.PasswordHash, a.DisplayName, a.PreferredLanguage, a.Theme, a.IsAdmin,
		a.FreeUsesCount, string(a.SubscriptionType), nullTime(a.SubscriptionExpiresAt), string(a.PaymentStatus),
		string(a.RequestedPlan), strings.TrimSpace(a.CustomAPIKey),
		a.ImagesProcessed, a.ExportsGenerated, a.ProjectsCreated,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt), nullTime(a.LastLogin))
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.NewConflictError("email is already registered").WithCode("email_taken")
		}
		r.logger.Error("Failed to create account", zap.String("accountID", a.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("create account", err)
	}
	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entities.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "account", "get account")
	}
	return a, nil
}

// GetByEmail retrieves an account by its lowercased email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entities.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`,
		strings.ToLower(email)))
	if err != nil {
		return nil, notFoundOr(err, "account", "get account by email")
	}
	return a, nil
}

// UsernameTaken reports whether any account uses username
func (r *AccountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE username = ?)`, username).Scan(&exists)
	if err != nil {
		return false, pkgerrors.NewDatabaseError("check username", err)
	}
	return exists, nil
}

// Update writes profile and subscription fields; the usage counters are
// owned by the ledger and are not touched.
func (r *AccountRepository) Update(ctx context.Context, a *entities.Account) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET
			username = ?, password_hash = ?, display_name = ?, preferred_language = ?, theme = ?, is_admin = ?,
			subscription_type = ?, subscription_expires_at = ?, payment_status = ?, requested_plan = ?,
			custom_api_key = ?, updated_at = ?, last_login = ?
		WHERE id = ?`,
		a.Username, a.PasswordHash, a.DisplayName, a.PreferredLanguage, a.Theme, a.IsAdmin,
		string(a.SubscriptionType), nullTime(a.SubscriptionExpiresAt), string(a.PaymentStatus), string(a.RequestedPlan),
		strings.TrimSpace(a.CustomAPIKey), formatTime(a.UpdatedAt), nullTime(a.LastLogin),
		a.ID)
	if err != nil {
		r.logger.Error("Failed to update account", zap.String("accountID", a.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("update account", err)
	}
	return requireRow(res, "account")
}

// List returns accounts newest first, filtered by email or username.
func (r *AccountRepository) List(ctx context.Context, opts ports.ListOptions) ([]*entities.Account, int, error) {
	pattern := likePattern(strings.TrimSpace(opts.Query))
	const where = `WHERE (? = '' OR email LIKE ? OR username LIKE ?)`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts `+where, pattern, pattern, pattern).Scan(&total); err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("count accounts", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts `+where+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		pattern, pattern, pattern, limitArg(opts.Limit), opts.Offset)
	if err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("list accounts", err)
	}
	defer rows.Close()

	accounts := []*entities.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, pkgerrors.NewDatabaseError("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("list accounts", err)
	}
	return accounts, total, nil
}

// Delete removes an account record
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return pkgerrors.NewDatabaseError("delete account", err)
	}
	return requireRow(res, "account")
}
