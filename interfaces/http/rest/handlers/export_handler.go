package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"scribe/application/services"
	"scribe/domain/core/valueobjects"
	"scribe/pkg/common"
	pkgerrors "scribe/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ExportHandler generates and serves export artifacts
type ExportHandler struct {
	exports *services.ExportService
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exports *services.ExportService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		exports: exports,
		errors:  errs,
		logger:  logger,
	}
}

// GenerateExportRequest is the body of POST /api/export
type GenerateExportRequest struct {
	ProjectID string          `json:"project_id" validate:"required"`
	Format    string          `json:"format" validate:"required"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// Formats handles GET /api/export/formats
func (h *ExportHandler) Formats(w http.ResponseWriter, r *http.Request) {
	type format struct {
		ID          string `json:"id"`
		Extension   string `json:"extension"`
		ContentType string `json:"content_type"`
	}
	formats := valueobjects.ExportFormats()
	out := make([]format, 0, len(formats))
	for _, f := range formats {
		out = append(out, format{ID: string(f), Extension: f.Extension(), ContentType: f.ContentType()})
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"formats": out})
}

// Generate handles POST /api/export
func (h *ExportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req GenerateExportRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	export, err := h.exports.Generate(r.Context(), user.UserID, services.GenerateInput{
		ProjectID: req.ProjectID,
		Format:    req.Format,
		Options:   req.Options,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, newExportResponse(export))
}

// GetExport handles GET /api/export/{exportID}
func (h *ExportHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	export, err := h.exports.Get(r.Context(), user.UserID, chi.URLParam(r, "exportID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newExportResponse(export))
}

// ListProjectExports handles GET /api/projects/{projectID}/exports
func (h *ExportHandler) ListProjectExports(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	projectID := chi.URLParam(r, "projectID")

	exports, err := h.exports.ListByProject(r.Context(), user.UserID, projectID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	out := make([]ExportResponse, 0, len(exports))
	for _, e := range exports {
		out = append(out, newExportResponse(e))
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"exports":    out,
	})
}

// Download handles GET /api/export/{exportID}/download
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	dl, err := h.exports.Download(r.Context(), user.UserID, chi.URLParam(r, "exportID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": dl.Export.Filename,
	}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Data); err != nil {
		h.logger.Warn("Download interrupted",
			zap.String("exportID", dl.Export.ID),
			zap.Error(err),
		)
	}
}
