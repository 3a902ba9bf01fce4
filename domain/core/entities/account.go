package entities

import (
	"strings"
	"time"

	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"

	"github.com/google/uuid"
)

// Account is a registered user together with the usage counters and
// subscription fields the ledger operates on.
type Account struct {
	ID                string
	Email             string
	Username          string
	PasswordHash      string
	DisplayName       string
	PreferredLanguage string
	Theme             string
	IsAdmin           bool

	FreeUsesCount         int
	SubscriptionType      valueobjects.SubscriptionType
	SubscriptionExpiresAt *time.Time
	PaymentStatus         valueobjects.PaymentStatus
	RequestedPlan         valueobjects.SubscriptionType
	CustomAPIKey          string

	ImagesProcessed  int
	ExportsGenerated int
	ProjectsCreated  int

	CreatedAt time.Time
	UpdatedAt time.Time
	LastLogin *time.Time
}

// NewAccount creates a free-tier account. The password must already be hashed.
func NewAccount(email, username, passwordHash string, now time.Time) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.NewValidationError("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, pkgerrors.NewValidationError("password hash cannot be empty")
	}
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	return &Account{
		ID:                uuid.NewString(),
		Email:             email,
		Username:          username,
		PasswordHash:      passwordHash,
		DisplayName:       username,
		PreferredLanguage: "en",
		Theme:             "light",
		SubscriptionType:  valueobjects.SubscriptionFree,
		PaymentStatus:     valueobjects.PaymentNone,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// HasCustomKey reports whether the account brings its own analysis key.
func (a *Account) HasCustomKey() bool {
	return strings.TrimSpace(a.CustomAPIKey) != ""
}

// HasActiveSubscription reports whether a paid plan is in force at now.
func (a *Account) HasActiveSubscription(now time.Time) bool {
	return a.SubscriptionType.IsPaid() &&
		a.SubscriptionExpiresAt != nil &&
		now.Before(*a.SubscriptionExpiresAt)
}

// FreeUsesRemaining never goes below zero.
func (a *Account) FreeUsesRemaining() int {
	if left := valueobjects.FreeUseLimit - a.FreeUsesCount; left > 0 {
		return left
	}
	return 0
}

// RequestUpgrade marks a plan as awaiting manual payment verification.
func (a *Account) RequestUpgrade(plan valueobjects.SubscriptionType, now time.Time) error {
	if !plan.IsPaid() {
		return pkgerrors.NewValidationError("requested plan must be a paid plan")
	}
	a.RequestedPlan = plan
	a.PaymentStatus = valueobjects.PaymentPending
	a.UpdatedAt = now
	return nil
}
