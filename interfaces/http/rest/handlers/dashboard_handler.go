package handlers

import (
	"net/http"

	"scribe/application/services"
	"scribe/pkg/common"
	pkgerrors "scribe/pkg/errors"
)

// DashboardHandler serves the landing page summary
type DashboardHandler struct {
	dashboard *services.DashboardService
	errors    *pkgerrors.ErrorHandler
}

func NewDashboardHandler(dashboard *services.DashboardService, errs *pkgerrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, errors: errs}
}

// DashboardResponse is the body of GET /api/dashboard
type DashboardResponse struct {
	ProjectCount    int               `json:"project_count"`
	WhiteboardCount int               `json:"whiteboard_count"`
	ExportCount     int               `json:"export_count"`
	RecentProjects  []ProjectResponse `json:"recent_projects"`
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	d, err := h.dashboard.Dashboard(r.Context(), user.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	recent := make([]ProjectResponse, 0, len(d.RecentProjects))
	for _, p := range d.RecentProjects {
		recent = append(recent, newProjectResponse(p))
	}
	common.RespondJSON(w, http.StatusOK, DashboardResponse{
		ProjectCount:    d.ProjectCount,
		WhiteboardCount: d.WhiteboardCount,
		ExportCount:     d.ExportCount,
		RecentProjects:  recent,
	})
}
