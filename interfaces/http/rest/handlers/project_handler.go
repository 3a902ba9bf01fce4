package handlers

import (
	"net/http"

	"scribe/application/services"
	"scribe/domain/core/entities"
	"scribe/pkg/common"
	pkgerrors "scribe/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProjectHandler handles project-related HTTP requests
type ProjectHandler struct {
	projects *services.ProjectService
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects *services.ProjectService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		errors:   errs,
		logger:   logger,
	}
}

// CreateProjectRequest represents the request body for creating a project
type CreateProjectRequest struct {
	Title       string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// UpdateProjectRequest represents the request body for updating a project
type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=draft completed"`
}

// ShareResponse is returned when a project is shared
type ShareResponse struct {
	ShareToken string `json:"share_token"`
	ShareURL   string `json:"share_url"`
}

// ListProjects handles GET /api/projects?page=&page_size=&q=
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	page, size, opts := pageParams(r)
	summaries, total, err := h.projects.List(r.Context(), user.UserID, opts)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	out := make([]ProjectResponse, 0, len(summaries))
	for _, s := range summaries {
		resp := newProjectResponse(s.Project)
		wbs, exps := s.WhiteboardCount, s.ExportCount
		resp.WhiteboardCount = &wbs
		resp.ExportCount = &exps
		out = append(out, resp)
	}
	common.RespondWithMeta(w, http.StatusOK, out, &common.MetaInfo{
		Pagination: common.NewPagination(page, size, total),
	})
}

// CreateProject handles POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req CreateProjectRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	project, err := h.projects.Create(r.Context(), user.UserID, req.Title, req.Description)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, newProjectResponse(project))
}

// GetProject handles GET /api/projects/{projectID}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	detail, err := h.projects.Get(r.Context(), user.UserID, chi.URLParam(r, "projectID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, detailResponse(detail))
}

// UpdateProject handles PUT /api/projects/{projectID}
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req UpdateProjectRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	project, err := h.projects.Update(r.Context(), user.UserID, chi.URLParam(r, "projectID"), services.ProjectUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newProjectResponse(project))
}

// DeleteProject handles DELETE /api/projects/{projectID}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := h.projects.Delete(r.Context(), user.UserID, chi.URLParam(r, "projectID")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShareProject handles POST /api/projects/{projectID}/share. Sharing an
// already shared project rotates its token.
func (h *ProjectHandler) ShareProject(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	project, err := h.projects.Share(r.Context(), user.UserID, chi.URLParam(r, "projectID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ShareResponse{
		ShareToken: project.ShareToken,
		ShareURL:   "/share/" + project.ShareToken,
	})
}

// UnshareProject handles DELETE /api/projects/{projectID}/share
func (h *ProjectHandler) UnshareProject(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	project, err := h.projects.Unshare(r.Context(), user.UserID, chi.URLParam(r, "projectID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newProjectResponse(project))
}

// GetShared handles the public GET /api/share/{token}
func (h *ProjectHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	detail, err := h.projects.GetShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	// Shared readers only see finished whiteboards.
	done := detail.Whiteboards[:0:0]
	for _, wb := range detail.Whiteboards {
		if wb.ProcessingStatus == entities.WhiteboardCompleted {
			done = append(done, wb)
		}
	}
	resp := detailResponse(&services.ProjectDetail{Project: detail.Project, Whiteboards: done})
	resp.ShareToken = ""
	common.RespondJSON(w, http.StatusOK, resp)
}

func detailResponse(detail *services.ProjectDetail) ProjectResponse {
	resp := newProjectResponse(detail.Project)
	resp.Whiteboards = newWhiteboardResponses(detail.Whiteboards)
	count := len(detail.Whiteboards)
	resp.WhiteboardCount = &count
	return resp
}
