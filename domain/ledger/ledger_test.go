package ledger_test

import (
	"testing"
	"time"

	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

func freeAccount(t *testing.T, uses int) *entities.Account {
	t.Helper()
	a, err := entities.NewAccount("user@example.com", "user", "hash", now)
	require.NoError(t, err)
	a.FreeUsesCount = uses
	return a
}

func TestAuthorizeFreeAccountOverQuotaIsDenied(t *testing.T) {
	for _, uses := range []int{10, 11, 50} {
		a := freeAccount(t, uses)

		d := ledger.Authorize(a, now)

		assert.False(t, d.Allowed, "uses=%d", uses)
		assert.Equal(t, "usage_limit_exceeded", d.Reason)
	}
}

func TestAuthorizeFreeAccountUnderQuota(t *testing.T) {
	a := freeAccount(t, 9)

	d := ledger.Authorize(a, now)

	assert.True(t, d.Allowed)
	assert.Equal(t, ledger.BasisFreeQuota, d.Basis)
}

func TestAuthorizeCustomKeyAlwaysAllowed(t *testing.T) {
	expired := now.Add(-time.Hour)
	cases := []struct {
		name string
		edit func(a *entities.Account)
	}{
		{"free over quota", func(a *entities.Account) { a.FreeUsesCount = 100 }},
		{"expired plan", func(a *entities.Account) {
			a.SubscriptionType = valueobjects.SubscriptionAnnual
			a.SubscriptionExpiresAt = &expired
			a.FreeUsesCount = 10
		}},
		{"pending payment", func(a *entities.Account) {
			a.PaymentStatus = valueobjects.PaymentPending
			a.FreeUsesCount = 10
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := freeAccount(t, 0)
			a.CustomAPIKey = "sk-own"
			tc.edit(a)

			d := ledger.Authorize(a, now)

			assert.True(t, d.Allowed)
			assert.Equal(t, ledger.BasisCustomKey, d.Basis)
		})
	}
}

func TestMonthlyActivation(t *testing.T) {
	a := freeAccount(t, 10)
	require.False(t, ledger.Authorize(a, now).Allowed)

	ledger.SetSubscription(a, ledger.SubscriptionChange{
		Type:          valueobjects.SubscriptionMonthly,
		PaymentStatus: valueobjects.PaymentActive,
		Activate:      true,
	}, now)

	require.NotNil(t, a.SubscriptionExpiresAt)
	assert.Equal(t, now.AddDate(0, 1, 0), *a.SubscriptionExpiresAt)
	assert.Equal(t, valueobjects.PaymentActive, a.PaymentStatus)

	d := ledger.Authorize(a, now)
	assert.True(t, d.Allowed)
	assert.Equal(t, ledger.BasisSubscription, d.Basis)
}

func TestActivationLengths(t *testing.T) {
	for typ, months := range map[valueobjects.SubscriptionType]int{
		valueobjects.SubscriptionMonthly:    1,
		valueobjects.SubscriptionSemiAnnual: 6,
		valueobjects.SubscriptionAnnual:     12,
	} {
		expires, ok := ledger.ExpiryFor(typ, now)
		require.True(t, ok)
		assert.Equal(t, now.AddDate(0, months, 0), expires, string(typ))
	}

	_, ok := ledger.ExpiryFor(valueobjects.SubscriptionFree, now)
	assert.False(t, ok)
}

func TestSetSubscriptionWithoutActivateKeepsExpiry(t *testing.T) {
	a := freeAccount(t, 0)
	expires := now.Add(48 * time.Hour)
	a.SubscriptionType = valueobjects.SubscriptionMonthly
	a.SubscriptionExpiresAt = &expires

	ledger.SetSubscription(a, ledger.SubscriptionChange{
		Type:          valueobjects.SubscriptionAnnual,
		PaymentStatus: valueobjects.PaymentExpired,
	}, now)

	assert.Equal(t, valueobjects.SubscriptionAnnual, a.SubscriptionType)
	assert.Equal(t, expires, *a.SubscriptionExpiresAt)
}

func TestRecordUse(t *testing.T) {
	t.Run("free account consumes a free use", func(t *testing.T) {
		a := freeAccount(t, 3)
		ledger.RecordUse(a, valueobjects.UsageImage, now)
		assert.Equal(t, 4, a.FreeUsesCount)
		assert.Equal(t, 1, a.ImagesProcessed)
	})

	t.Run("subscriber keeps free uses", func(t *testing.T) {
		a := freeAccount(t, 3)
		expires := now.Add(time.Hour)
		a.SubscriptionType = valueobjects.SubscriptionMonthly
		a.SubscriptionExpiresAt = &expires

		ledger.RecordUse(a, valueobjects.UsageExport, now)

		assert.Equal(t, 3, a.FreeUsesCount)
		assert.Equal(t, 1, a.ExportsGenerated)
	})

	t.Run("custom key keeps free uses", func(t *testing.T) {
		a := freeAccount(t, 3)
		a.CustomAPIKey = "sk"
		ledger.RecordUse(a, valueobjects.UsageImage, now)
		assert.Equal(t, 3, a.FreeUsesCount)
	})

	t.Run("project creation is not metered", func(t *testing.T) {
		a := freeAccount(t, 3)
		ledger.RecordUse(a, valueobjects.UsageProject, now)
		assert.Equal(t, 3, a.FreeUsesCount)
		assert.Equal(t, 1, a.ProjectsCreated)
	})
}

func TestConsumeStopsAtLimit(t *testing.T) {
	a := freeAccount(t, 0)

	allowed := 0
	for i := 0; i < 15; i++ {
		if ledger.Consume(a, valueobjects.UsageImage, now).Allowed {
			allowed++
		}
	}

	assert.Equal(t, 10, allowed)
	assert.Equal(t, 10, a.FreeUsesCount)
	assert.Equal(t, 10, a.ImagesProcessed)
}

func TestSnapshot(t *testing.T) {
	a := freeAccount(t, 7)
	u := ledger.Snapshot(a, now)

	assert.Equal(t, 3, u.FreeUsesRemaining)
	assert.True(t, u.CanProcess)
	assert.False(t, u.HasCustomAPIKey)
	assert.Equal(t, 3, u.Details()["free_uses_remaining"])
}
