package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortableTimeRoundTripsAndOrders(t *testing.T) {
	earlier := time.Date(2024, 3, 9, 8, 0, 0, 0, time.FixedZone("CET", 3600))
	later := earlier.Add(90 * time.Minute)

	a, b := FormatSortable(earlier), FormatSortable(later)
	assert.Equal(t, "2024-03-09T07:00:00Z", a)
	assert.Less(t, a, b)

	parsed, err := ParseSortable(a)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(earlier))
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	type input struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"min=8"`
		Plan     string `json:"plan" validate:"omitempty,oneof=monthly annual"`
	}

	err := ValidateStruct(input{Email: "nope", Password: "short", Plan: "weekly"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "password must be at least 8 characters")
	assert.Contains(t, err.Error(), "plan must be one of: monthly annual")

	assert.NoError(t, ValidateStruct(input{Email: "a@b.co", Password: "long enough"}))
}
