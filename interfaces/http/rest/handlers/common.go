// Package handlers maps HTTP requests onto the application services and
// shapes their results into JSON.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/pkg/auth"
	pkgerrors "scribe/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// currentUser returns the caller set by the authentication middleware
func currentUser(r *http.Request) (*auth.UserContext, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return nil, pkgerrors.NewUnauthorizedError("authentication required")
	}
	return user, nil
}

// pageParams reads ?page=&page_size=&q= into list options
func pageParams(r *http.Request) (int, int, ports.ListOptions) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("page_size"))
	switch {
	case size < 1:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return page, size, ports.ListOptions{
		Offset: (page - 1) * size,
		Limit:  size,
		Query:  q.Get("q"),
	}
}

// AccountResponse is the public view of an account. The custom key is
// never returned, only whether one is set.
type AccountResponse struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	Username              string     `json:"username"`
	DisplayName           string     `json:"display_name"`
	PreferredLanguage     string     `json:"preferred_language"`
	Theme                 string     `json:"theme"`
	IsAdmin               bool       `json:"is_admin"`
	SubscriptionType      string     `json:"subscription_type"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	PaymentStatus         string     `json:"payment_status"`
	RequestedPlan         string     `json:"requested_plan,omitempty"`
	HasCustomAPIKey       bool       `json:"has_custom_api_key"`
	FreeUsesCount         int        `json:"free_uses_count"`
	FreeUsesRemaining     int        `json:"free_uses_remaining"`
	ImagesProcessed       int        `json:"images_processed"`
	ExportsGenerated      int        `json:"exports_generated"`
	ProjectsCreated       int        `json:"projects_created"`
	CreatedAt             time.Time  `json:"created_at"`
	LastLogin             *time.Time `json:"last_login,omitempty"`
}

func newAccountResponse(a *entities.Account) AccountResponse {
	return AccountResponse{
		ID:                    a.ID,
		Email:                 a.Email,
		Username:              a.Username,
		DisplayName:           a.DisplayName,
		PreferredLanguage:     a.PreferredLanguage,
		Theme:                 a.Theme,
		IsAdmin:               a.IsAdmin,
		SubscriptionType:      string(a.SubscriptionType),
		SubscriptionExpiresAt: a.SubscriptionExpiresAt,
		PaymentStatus:         string(a.PaymentStatus),
		RequestedPlan:         string(a.RequestedPlan),
		HasCustomAPIKey:       a.HasCustomKey(),
		FreeUsesCount:         a.FreeUsesCount,
		FreeUsesRemaining:     a.FreeUsesRemaining(),
		ImagesProcessed:       a.ImagesProcessed,
		ExportsGenerated:      a.ExportsGenerated,
		ProjectsCreated:       a.ProjectsCreated,
		CreatedAt:             a.CreatedAt,
		LastLogin:             a.LastLogin,
	}
}

// ProjectResponse is a project as returned by the API
type ProjectResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	ShareToken      string    `json:"share_token,omitempty"`
	IsPublic        bool      `json:"is_public"`
	WhiteboardCount *int      `json:"whiteboard_count,omitempty"`
	ExportCount     *int      `json:"export_count,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Whiteboards []WhiteboardResponse `json:"whiteboards,omitempty"`
}

func newProjectResponse(p *entities.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Title:       p.DisplayTitle(),
		Description: p.Description,
		Status:      string(p.Status),
		ShareToken:  p.ShareToken,
		IsPublic:    p.IsPublic(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// WhiteboardResponse is a whiteboard as returned by the API
type WhiteboardResponse struct {
	ID                string          `json:"id"`
	ProjectID         string          `json:"project_id"`
	OriginalFilename  string          `json:"original_filename"`
	MimeType          string          `json:"mime_type"`
	FileSize          int64           `json:"file_size"`
	ProcessingStatus  string          `json:"processing_status"`
	Progress          int             `json:"progress"`
	ExtractedText     string          `json:"raw_text,omitempty"`
	StructuredContent json.RawMessage `json:"structured_content,omitempty"`
	ConfidenceScore   float64         `json:"confidence_score"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
}

func newWhiteboardResponse(w *entities.Whiteboard) WhiteboardResponse {
	return WhiteboardResponse{
		ID:                w.ID,
		ProjectID:         w.ProjectID,
		OriginalFilename:  w.OriginalFilename,
		MimeType:          w.MimeType,
		FileSize:          w.FileSize,
		ProcessingStatus:  string(w.ProcessingStatus),
		Progress:          w.Progress,
		ExtractedText:     w.ExtractedText,
		StructuredContent: w.StructuredContent,
		ConfidenceScore:   w.ConfidenceScore,
		ErrorMessage:      w.ErrorMessage,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
		ProcessedAt:       w.ProcessedAt,
	}
}

func newWhiteboardResponses(wbs []*entities.Whiteboard) []WhiteboardResponse {
	out := make([]WhiteboardResponse, 0, len(wbs))
	for _, wb := range wbs {
		out = append(out, newWhiteboardResponse(wb))
	}
	return out
}

// ExportResponse is an export record as returned by the API
type ExportResponse struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	Format         string          `json:"format"`
	Status         string          `json:"status"`
	Filename       string          `json:"filename"`
	FileSize       int64           `json:"file_size"`
	Options        json.RawMessage `json:"options,omitempty"`
	DownloadCount  int             `json:"download_count"`
	LastDownloaded *time.Time      `json:"last_downloaded,omitempty"`
	DownloadURL    string          `json:"download_url,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

func newExportResponse(e *entities.Export) ExportResponse {
	resp := ExportResponse{
		ID:             e.ID,
		ProjectID:      e.ProjectID,
		Format:         string(e.Format),
		Status:         string(e.Status),
		Filename:       e.Filename,
		FileSize:       e.FileSize,
		DownloadCount:  e.DownloadCount,
		LastDownloaded: e.LastDownloaded,
		ErrorMessage:   e.ErrorMessage,
		CreatedAt:      e.CreatedAt,
		CompletedAt:    e.CompletedAt,
	}
	if e.Options != nil {
		if raw, err := json.Marshal(e.Options); err == nil {
			resp.Options = raw
		}
	}
	if e.Downloadable() {
		resp.DownloadURL = "/api/export/" + e.ID + "/download"
	}
	return resp
}
