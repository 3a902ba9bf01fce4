// Package ledger holds the usage and subscription rules for accounts.
//
// The functions here operate on an in-memory Account. Stores that need the
// check and the increment to happen together implement the same rules as a
// single conditional update; Consume is the reference those must agree with.
package ledger

import (
	"time"

	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"
)

// Basis names the rule that allowed an operation.
type Basis string

const (
	BasisCustomKey    Basis = "custom_key"
	BasisSubscription Basis = "subscription"
	BasisFreeQuota    Basis = "free_quota"
	BasisNone         Basis = ""
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Basis   Basis  `json:"basis,omitempty"`
}

// Allowed builds a positive decision.
func Allowed(basis Basis) Decision {
	return Decision{Allowed: true, Basis: basis}
}

// Denied builds a negative decision.
func Denied(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Authorize decides whether the account may run a metered operation at now.
func Authorize(a *entities.Account, now time.Time) Decision {
	switch {
	case a.HasCustomKey():
		return Allowed(BasisCustomKey)
	case a.HasActiveSubscription(now):
		return Allowed(BasisSubscription)
	case a.FreeUsesCount < valueobjects.FreeUseLimit:
		return Allowed(BasisFreeQuota)
	}
	return Denied(pkgerrors.ReasonUsageLimitExceeded)
}

// ServedFromFreeQuota reports whether a metered use at now would be charged
// against the free counter.
func ServedFromFreeQuota(a *entities.Account, now time.Time) bool {
	return !a.HasCustomKey() && !a.HasActiveSubscription(now)
}

// RecordUse increments the counter for kind. Metered kinds also consume a
// free use when the account has neither a custom key nor an active plan.
func RecordUse(a *entities.Account, kind valueobjects.UsageKind, now time.Time) {
	switch kind {
	case valueobjects.UsageImage:
		a.ImagesProcessed++
	case valueobjects.UsageExport:
		a.ExportsGenerated++
	case valueobjects.UsageProject:
		a.ProjectsCreated++
	}
	if kind.Metered() && ServedFromFreeQuota(a, now) {
		a.FreeUsesCount++
	}
	a.UpdatedAt = now
}

// Consume authorizes and, when allowed, records one metered use.
func Consume(a *entities.Account, kind valueobjects.UsageKind, now time.Time) Decision {
	d := Authorize(a, now)
	if d.Allowed {
		RecordUse(a, kind, now)
	}
	return d
}

// ExpiryFor returns the expiry an activation at now grants for plan t.
// ok is false for the free plan, which has no expiry.
func ExpiryFor(t valueobjects.SubscriptionType, now time.Time) (time.Time, bool) {
	months := t.Months()
	if months == 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, months, 0), true
}

// SubscriptionChange is an administrator's edit of an account's plan. The
// administrator has verified payment outside the system; no state pair is
// forbidden.
type SubscriptionChange struct {
	Type          valueobjects.SubscriptionType
	PaymentStatus valueobjects.PaymentStatus
	Activate      bool
}

// SetSubscription applies change to a. Activating starts a new period from
// now; otherwise the expiry is left as it was. Activating the free plan
// clears the expiry.
func SetSubscription(a *entities.Account, change SubscriptionChange, now time.Time) {
	a.SubscriptionType = change.Type
	a.PaymentStatus = change.PaymentStatus
	if change.Activate {
		if expires, ok := ExpiryFor(change.Type, now); ok {
			a.SubscriptionExpiresAt = &expires
		} else {
			a.SubscriptionExpiresAt = nil
		}
		if a.RequestedPlan == change.Type {
			a.RequestedPlan = ""
		}
	}
	a.UpdatedAt = now
}

// Usage is the read model behind the usage screen.
type Usage struct {
	FreeUsesCount         int                           `json:"free_uses_count"`
	FreeUsesRemaining     int                           `json:"free_uses_remaining"`
	FreeUseLimit          int                           `json:"free_use_limit"`
	SubscriptionType      valueobjects.SubscriptionType `json:"subscription_type"`
	SubscriptionExpiresAt *time.Time                    `json:"subscription_expires_at,omitempty"`
	SubscriptionActive    bool                          `json:"subscription_active"`
	PaymentStatus         valueobjects.PaymentStatus    `json:"payment_status"`
	RequestedPlan         valueobjects.SubscriptionType `json:"requested_plan,omitempty"`
	HasCustomAPIKey       bool                          `json:"has_custom_api_key"`
	ImagesProcessed       int                           `json:"images_processed"`
	ExportsGenerated      int                           `json:"exports_generated"`
	ProjectsCreated       int                           `json:"projects_created"`
	CanProcess            bool                          `json:"can_process"`
}

// Snapshot builds the usage view of a at now.
func Snapshot(a *entities.Account, now time.Time) Usage {
	return Usage{
		FreeUsesCount:         a.FreeUsesCount,
		FreeUsesRemaining:     a.FreeUsesRemaining(),
		FreeUseLimit:          valueobjects.FreeUseLimit,
		SubscriptionType:      a.SubscriptionType,
		SubscriptionExpiresAt: a.SubscriptionExpiresAt,
		SubscriptionActive:    a.HasActiveSubscription(now),
		PaymentStatus:         a.PaymentStatus,
		RequestedPlan:         a.RequestedPlan,
		HasCustomAPIKey:       a.HasCustomKey(),
		ImagesProcessed:       a.ImagesProcessed,
		ExportsGenerated:      a.ExportsGenerated,
		ProjectsCreated:       a.ProjectsCreated,
		CanProcess:            Authorize(a, now).Allowed,
	}
}

// Details flattens the usage view for error payloads.
func (u Usage) Details() map[string]interface{} {
	return map[string]interface{}{
		"free_uses_count":     u.FreeUsesCount,
		"free_uses_remaining": u.FreeUsesRemaining,
		"subscription_type":   string(u.SubscriptionType),
		"payment_status":      string(u.PaymentStatus),
	}
}
