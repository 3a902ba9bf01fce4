package valueobjects

import (
	"fmt"

	pkgerrors "scribe/pkg/errors"
)

// SubscriptionType is the plan an account is on.
type SubscriptionType string

const (
	SubscriptionFree       SubscriptionType = "free"
	SubscriptionMonthly    SubscriptionType = "monthly"
	SubscriptionSemiAnnual SubscriptionType = "semi_annual"
	SubscriptionAnnual     SubscriptionType = "annual"
)

// ParseSubscriptionType validates s against the known plans.
func ParseSubscriptionType(s string) (SubscriptionType, error) {
	switch t := SubscriptionType(s); t {
	case SubscriptionFree, SubscriptionMonthly, SubscriptionSemiAnnual, SubscriptionAnnual:
		return t, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown subscription type %q", s))
}

// IsPaid reports whether the plan is anything other than free.
func (t SubscriptionType) IsPaid() bool {
	return t != "" && t != SubscriptionFree
}

// Months is the activation length of the plan in calendar months.
func (t SubscriptionType) Months() int {
	switch t {
	case SubscriptionMonthly:
		return 1
	case SubscriptionSemiAnnual:
		return 6
	case SubscriptionAnnual:
		return 12
	}
	return 0
}

// PaymentStatus tracks the manual QR payment flow.
type PaymentStatus string

const (
	PaymentNone    PaymentStatus = "none"
	PaymentPending PaymentStatus = "pending"
	PaymentActive  PaymentStatus = "active"
	PaymentExpired PaymentStatus = "expired"
)

// ParsePaymentStatus validates s against the known payment states.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch p := PaymentStatus(s); p {
	case PaymentNone, PaymentPending, PaymentActive, PaymentExpired:
		return p, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown payment status %q", s))
}

// Plan is a purchasable subscription shown on the payment screen.
type Plan struct {
	Type     SubscriptionType `json:"type"`
	Name     string           `json:"name"`
	Price    float64          `json:"price"`
	Currency string           `json:"currency"`
	Months   int              `json:"months"`
}

// MonthlyPrice is the plan price spread over its length.
func (p Plan) MonthlyPrice() float64 {
	if p.Months == 0 {
		return 0
	}
	return p.Price / float64(p.Months)
}

// Plans lists the paid plans in display order.
func Plans() []Plan {
	return []Plan{
		{Type: SubscriptionMonthly, Name: "Monthly", Price: 16.5, Currency: "CNY", Months: 1},
		{Type: SubscriptionSemiAnnual, Name: "Semi-annual", Price: 99, Currency: "CNY", Months: 6},
		{Type: SubscriptionAnnual, Name: "Annual", Price: 198, Currency: "CNY", Months: 12},
	}
}

// PlanFor returns the paid plan of type t.
func PlanFor(t SubscriptionType) (Plan, bool) {
	for _, p := range Plans() {
		if p.Type == t {
			return p, true
		}
	}
	return Plan{}, false
}
