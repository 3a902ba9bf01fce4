package entities

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"
	"scribe/pkg/utils"

	"github.com/google/uuid"
)

// Export is one generated artifact for a project.
type Export struct {
	ID             string
	ProjectID      string
	OwnerID        string
	Format         valueobjects.ExportFormat
	Options        valueobjects.ExportOptions
	Status         valueobjects.ExportStatus
	Filename       string
	FilePath       string
	FileSize       int64
	DownloadCount  int
	LastDownloaded *time.Time
	ErrorMessage   string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// NewExport creates a record in the generating state.
func NewExport(project *Project, opts valueobjects.ExportOptions, now time.Time) (*Export, error) {
	if project == nil {
		return nil, pkgerrors.NewValidationError("export requires a project")
	}
	if opts == nil {
		return nil, pkgerrors.NewValidationError("export requires options")
	}
	return &Export{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		OwnerID:   project.OwnerID,
		Format:    opts.Format(),
		Options:   opts,
		Status:    valueobjects.ExportGenerating,
		Filename:  ExportFilename(project.DisplayTitle(), opts.Format(), now),
		CreatedAt: now,
	}, nil
}

// Complete records a stored artifact.
func (e *Export) Complete(path string, size int64, now time.Time) {
	e.Status = valueobjects.ExportCompleted
	e.FilePath = path
	e.FileSize = size
	e.ErrorMessage = ""
	e.CompletedAt = &now
}

// Fail records why the artifact could not be produced.
func (e *Export) Fail(message string, now time.Time) {
	e.Status = valueobjects.ExportError
	e.ErrorMessage = message
	e.FilePath = ""
	e.FileSize = 0
	e.CompletedAt = &now
}

// Downloadable reports whether the artifact can be served.
func (e *Export) Downloadable() bool {
	return e.Status == valueobjects.ExportCompleted && e.FilePath != ""
}

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// ExportFilename builds "<title>_<yyyymmdd_hhmmss>.<ext>".
func ExportFilename(title string, format valueobjects.ExportFormat, now time.Time) string {
	base := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(title), "_"), "_")
	if base == "" {
		base = "whiteboard"
	}
	return fmt.Sprintf("%s_%s.%s", base, now.Format(utils.FilenameStampLayout), format.Extension())
}
