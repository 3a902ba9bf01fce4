package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"scribe/application/services"
	"scribe/pkg/common"
	pkgerrors "scribe/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler serves the admin panel
type AdminHandler struct {
	admin   *services.AdminService
	exports *services.ExportService
	// retentionDays is read per request so a reloaded configuration applies
	retentionDays func() int
	errors        *pkgerrors.ErrorHandler
	logger        *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	admin *services.AdminService,
	exports *services.ExportService,
	retentionDays func() int,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:         admin,
		exports:       exports,
		retentionDays: retentionDays,
		errors:        errs,
		logger:        logger,
	}
}

// SubscriptionRequest is the body of PUT /api/admin/users/{userID}/subscription
type SubscriptionRequest struct {
	SubscriptionType string `json:"subscription_type" validate:"required"`
	PaymentStatus    string `json:"payment_status" validate:"required"`
	// Activate starts the plan period now
	Activate bool `json:"activate"`
}

// ListUsers handles GET /api/admin/users?page=&page_size=&q=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, size, opts := pageParams(r)
	accounts, total, err := h.admin.ListAccounts(r.Context(), opts)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAccountResponse(a))
	}
	common.RespondWithMeta(w, http.StatusOK, out, &common.MetaInfo{
		Pagination: common.NewPagination(page, size, total),
	})
}

// SetSubscription handles PUT /api/admin/users/{userID}/subscription
func (h *AdminHandler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	admin, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req SubscriptionRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	account, err := h.admin.SetSubscription(r.Context(), admin.UserID, chi.URLParam(r, "userID"), services.SubscriptionInput{
		Type:          req.SubscriptionType,
		PaymentStatus: req.PaymentStatus,
		Activate:      req.Activate,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newAccountResponse(account))
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stats)
}

// PurgeExports handles POST /api/admin/exports/purge?days=
func (h *AdminHandler) PurgeExports(w http.ResponseWriter, r *http.Request) {
	days := h.retentionDays()
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.errors.Handle(w, r, pkgerrors.NewValidationError(fmt.Sprintf("invalid days %q", raw)))
			return
		}
		days = n
	}

	removed, err := h.exports.Purge(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.logger.Info("Exports purged", zap.Int("removed", removed), zap.Int("retentionDays", days))
	common.RespondJSON(w, http.StatusOK, map[string]int{
		"removed":        removed,
		"retention_days": days,
	})
}
