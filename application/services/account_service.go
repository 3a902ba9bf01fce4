package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/events"
	"scribe/pkg/auth"
	pkgerrors "scribe/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUsernameSuffix bounds the search for a free username before falling
// back to a random suffix.
const maxUsernameSuffix = 50

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateToken(userID, email string, roles []string) (string, time.Time, error)
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Email             string
	Password          string
	Username          string
	DisplayName       string
	PreferredLanguage string
}

// ProfileUpdate carries the profile fields a user may edit. Nil fields are
// left alone; an empty CustomAPIKey removes the key.
type ProfileUpdate struct {
	DisplayName       *string
	PreferredLanguage *string
	Theme             *string
	CustomAPIKey      *string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *entities.Account
}

// AccountService handles registration, sessions and profiles.
type AccountService struct {
	accounts  ports.AccountRepository
	projects  *ProjectService
	tokens    TokenIssuer
	publisher ports.EventPublisher
	clock     Clock
	logger    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	accounts ports.AccountRepository,
	projects *ProjectService,
	tokens TokenIssuer,
	publisher ports.EventPublisher,
	clock Clock,
	logger *zap.Logger,
) *AccountService {
	if clock == nil {
		clock = SystemClock
	}
	return &AccountService{
		accounts:  accounts,
		projects:  projects,
		tokens:    tokens,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// Register creates a free account and signs the user in.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, pkgerrors.NewConflictError("email is already registered").WithCode("email_taken")
	} else if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "hash password")
	}

	username, err := s.uniqueUsername(ctx, in.Username, email)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	account, err := entities.NewAccount(email, username, hash, now)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.DisplayName); name != "" {
		account.DisplayName = name
	}
	if lang := strings.TrimSpace(in.PreferredLanguage); lang != "" {
		account.PreferredLanguage = lang
	}
	account.LastLogin = &now

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account registered",
		zap.String("accountID", account.ID),
		zap.String("username", account.Username),
	)
	return s.issue(account)
}

// Login checks the password and signs the user in.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewUnauthorizedError("invalid email or password")
		}
		return nil, err
	}
	if err := auth.CheckPassword(account.PasswordHash, password); err != nil {
		s.logger.Debug("Password mismatch", zap.String("accountID", account.ID))
		return nil, pkgerrors.NewUnauthorizedError("invalid email or password")
	}

	now := s.clock()
	account.LastLogin = &now
	account.UpdatedAt = now
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return s.issue(account)
}

// Profile returns the account of the signed-in user.
func (s *AccountService) Profile(ctx context.Context, accountID string) (*entities.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

// UpdateProfile applies the editable profile fields.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, update ProfileUpdate) (*entities.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if update.DisplayName != nil {
		account.DisplayName = strings.TrimSpace(*update.DisplayName)
	}
	if update.PreferredLanguage != nil {
		account.PreferredLanguage = strings.TrimSpace(*update.PreferredLanguage)
	}
	if update.Theme != nil {
		account.Theme = strings.TrimSpace(*update.Theme)
	}
	if update.CustomAPIKey != nil {
		account.CustomAPIKey = strings.TrimSpace(*update.CustomAPIKey)
	}
	account.UpdatedAt = s.clock()

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Plans lists the paid plans offered on the payment page.
func (s *AccountService) Plans() []valueobjects.Plan {
	return valueobjects.Plans()
}

// RequestUpgrade marks a plan as paid by QR code and awaiting verification.
func (s *AccountService) RequestUpgrade(ctx context.Context, accountID, plan string) (*entities.Account, error) {
	planType, err := valueobjects.ParseSubscriptionType(plan)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := account.RequestUpgrade(planType, now); err != nil {
		return nil, err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Upgrade requested",
		zap.String("accountID", accountID),
		zap.String("plan", string(planType)),
	)
	publishEvent(ctx, s.publisher, s.logger, events.NewUpgradeRequested(accountID, planType, now))
	return account, nil
}

// DeleteAccount removes the account with all of its projects and files.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return err
	}
	removed, err := s.projects.DeleteAllForOwner(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("Account deleted",
		zap.String("accountID", accountID),
		zap.Int("projects", removed),
	)
	return nil
}

func (s *AccountService) issue(account *entities.Account) (*AuthResult, error) {
	token, expires, err := s.tokens.GenerateToken(account.ID, account.Email, auth.RolesFor(account.IsAdmin))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "issue token")
	}
	return &AuthResult{Token: token, ExpiresAt: expires, Account: account}, nil
}

// uniqueUsername picks the requested name, or the email's local part, and
// appends a number until it is free.
func (s *AccountService) uniqueUsername(ctx context.Context, requested, email string) (string, error) {
	base := strings.TrimSpace(requested)
	if base == "" {
		base = strings.SplitN(email, "@", 2)[0]
	}

	candidate := base
	for i := 1; i <= maxUsernameSuffix; i++ {
		taken, err := s.accounts.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return base + "_" + uuid.NewString()[:8], nil
}
