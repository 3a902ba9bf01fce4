package entities

import (
	"fmt"
	"strings"
	"time"

	pkgerrors "scribe/pkg/errors"

	"github.com/google/uuid"
)

// ProjectStatus represents the state of a project
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectCompleted ProjectStatus = "completed"
)

// ParseProjectStatus validates s.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch p := ProjectStatus(s); p {
	case ProjectDraft, ProjectCompleted:
		return p, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown project status %q", s))
}

// Project groups the whiteboards of one meeting and owns their exports.
type Project struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Status      ProjectStatus
	ShareToken  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProject creates a draft project
func NewProject(ownerID, title, description string, now time.Time) (*Project, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("ownerID cannot be empty")
	}
	return &Project{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Status:      ProjectDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsOwnedBy reports whether accountID owns the project.
func (p *Project) IsOwnedBy(accountID string) bool {
	return p.OwnerID == accountID
}

// IsPublic reports whether the project is readable through its share token.
func (p *Project) IsPublic() bool {
	return p.ShareToken != ""
}

// Share issues a fresh share token, replacing any previous one.
func (p *Project) Share(now time.Time) string {
	p.ShareToken = uuid.NewString()
	p.UpdatedAt = now
	return p.ShareToken
}

// Unshare revokes public access.
func (p *Project) Unshare(now time.Time) {
	p.ShareToken = ""
	p.UpdatedAt = now
}

// AdoptTitle names an untitled project after analyzed content and marks it
// completed. It is a no-op when the project already has a title.
func (p *Project) AdoptTitle(title string, now time.Time) bool {
	title = strings.TrimSpace(title)
	if p.Title != "" || title == "" {
		return false
	}
	p.Title = title
	p.Status = ProjectCompleted
	p.UpdatedAt = now
	return true
}

// DisplayTitle is the title used in exports and file names.
func (p *Project) DisplayTitle() string {
	if p.Title == "" {
		return "Meeting Whiteboard Notes"
	}
	return p.Title
}
