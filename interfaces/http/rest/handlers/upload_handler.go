package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"scribe/application/services"
	"scribe/pkg/common"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// multipartOverhead leaves room for form fields and part headers
const multipartOverhead = 1 << 20

// UploadHandler accepts whiteboard photos
type UploadHandler struct {
	uploads  *services.UploadService
	maxBytes int64
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewUploadHandler creates a new upload handler. maxBytes bounds the image
// itself; zero means services.MaxUploadBytes.
func NewUploadHandler(uploads *services.UploadService, maxBytes int64, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = services.MaxUploadBytes
	}
	return &UploadHandler{
		uploads:  uploads,
		maxBytes: maxBytes,
		errors:   errs,
		logger:   logger,
	}
}

// UploadResponse reports the stored whiteboard
type UploadResponse struct {
	Whiteboard     WhiteboardResponse `json:"whiteboard"`
	Project        ProjectResponse    `json:"project"`
	ProjectCreated bool               `json:"project_created"`
}

// Upload handles POST /api/upload with a multipart "image" part and an
// optional "project_id" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.errors.Handle(w, r, h.formError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("no image file provided").WithCode("missing_image"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		h.errors.Handle(w, r, h.formError(err))
		return
	}
	if int64(len(data)) > h.maxBytes {
		h.errors.Handle(w, r, h.tooLarge())
		return
	}

	result, err := h.uploads.Upload(r.Context(), user.UserID, services.UploadInput{
		ProjectID: r.FormValue("project_id"),
		Filename:  header.Filename,
		Data:      data,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, UploadResponse{
		Whiteboard:     newWhiteboardResponse(result.Whiteboard),
		Project:        newProjectResponse(result.Project),
		ProjectCreated: result.ProjectCreated,
	})
}

func (h *UploadHandler) formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return h.tooLarge()
	}
	return pkgerrors.NewValidationError("invalid multipart upload").WithCause(err)
}

func (h *UploadHandler) tooLarge() error {
	return pkgerrors.NewValidationError(fmt.Sprintf("image exceeds %d MiB", h.maxBytes>>20)).WithCode("file_too_large")
}
