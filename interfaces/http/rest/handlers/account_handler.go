package handlers

import (
	"net/http"
	"time"

	"scribe/application/services"
	"scribe/pkg/common"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// AccountHandler serves registration, sessions, profiles and payments
type AccountHandler struct {
	accounts *services.AccountService
	ledger   *services.LedgerService
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(
	accounts *services.AccountService,
	ledger *services.LedgerService,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		ledger:   ledger,
		errors:   errs,
		logger:   logger,
	}
}

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	Username    string `json:"username,omitempty" validate:"omitempty,max=64"`
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Language    string `json:"language,omitempty" validate:"omitempty,max=8"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries the editable profile fields
type UpdateProfileRequest struct {
	DisplayName       *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	PreferredLanguage *string `json:"preferred_language,omitempty" validate:"omitempty,max=8"`
	Theme             *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
	CustomAPIKey      *string `json:"custom_api_key,omitempty" validate:"omitempty,max=256"`
}

// UpgradeRequest is the body of POST /api/payment/request
type UpgradeRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      AccountResponse `json:"user"`
}

// Register handles POST /api/auth/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.accounts.Register(r.Context(), services.RegisterInput{
		Email:             req.Email,
		Password:          req.Password,
		Username:          req.Username,
		DisplayName:       req.DisplayName,
		PreferredLanguage: req.Language,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, newAuthResponse(result))
}

// Login handles POST /api/auth/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newAuthResponse(result))
}

// Logout handles POST /api/auth/logout. Sessions are stateless tokens, so
// the client discards its copy.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Profile handles GET /api/auth/profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	account, err := h.accounts.Profile(r.Context(), user.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newAccountResponse(account))
}

// UpdateProfile handles PUT /api/auth/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req UpdateProfileRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	account, err := h.accounts.UpdateProfile(r.Context(), user.UserID, services.ProfileUpdate{
		DisplayName:       req.DisplayName,
		PreferredLanguage: req.PreferredLanguage,
		Theme:             req.Theme,
		CustomAPIKey:      req.CustomAPIKey,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newAccountResponse(account))
}

// Usage handles GET /api/auth/usage
func (h *AccountHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	usage, err := h.ledger.Usage(r.Context(), user.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, usage)
}

// DeleteAccount handles DELETE /api/auth/account
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := h.accounts.DeleteAccount(r.Context(), user.UserID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Plans handles GET /api/payment/plans
func (h *AccountHandler) Plans(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": h.accounts.Plans(),
	})
}

// RequestUpgrade handles POST /api/payment/request
func (h *AccountHandler) RequestUpgrade(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req UpgradeRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	account, err := h.accounts.RequestUpgrade(r.Context(), user.UserID, req.Plan)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "payment submitted, awaiting verification",
		"user":    newAccountResponse(account),
	})
}

func newAuthResponse(result *services.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      newAccountResponse(result.Account),
	}
}
