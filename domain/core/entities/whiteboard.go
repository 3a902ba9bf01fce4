package entities

import (
	"encoding/json"
	"time"

	pkgerrors "scribe/pkg/errors"

	"github.com/google/uuid"
)

// ProcessingStatus is the analysis state of a whiteboard.
type ProcessingStatus string

const (
	WhiteboardUploaded   ProcessingStatus = "uploaded"
	WhiteboardProcessing ProcessingStatus = "processing"
	WhiteboardCompleted  ProcessingStatus = "completed"
	WhiteboardError      ProcessingStatus = "error"
)

// Terminal reports whether no further progress will be made.
func (s ProcessingStatus) Terminal() bool {
	return s == WhiteboardCompleted || s == WhiteboardError
}

// Whiteboard is one uploaded photo and, once analyzed, its structured content.
type Whiteboard struct {
	ID               string
	ProjectID        string
	OwnerID          string
	OriginalFilename string
	ImagePath        string
	MimeType         string
	FileSize         int64

	ProcessingStatus ProcessingStatus
	Progress         int
	ExtractedText    string
	// StructuredContent is kept as the JSON the analysis produced. It is
	// parsed on use, so a damaged document only affects its own whiteboard.
	StructuredContent json.RawMessage
	ConfidenceScore   float64
	ErrorMessage      string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

// NewWhiteboard records a freshly stored upload.
func NewWhiteboard(projectID, ownerID, originalFilename, imagePath, mimeType string, size int64, now time.Time) (*Whiteboard, error) {
	if projectID == "" || ownerID == "" {
		return nil, pkgerrors.NewValidationError("whiteboard requires a project and an owner")
	}
	if imagePath == "" {
		return nil, pkgerrors.NewValidationError("whiteboard requires a stored image")
	}
	return &Whiteboard{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		OwnerID:          ownerID,
		OriginalFilename: originalFilename,
		ImagePath:        imagePath,
		MimeType:         mimeType,
		FileSize:         size,
		ProcessingStatus: WhiteboardUploaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ProcessingStaleAfter is how long a run may go without storing progress
// before the whiteboard may be claimed again.
const ProcessingStaleAfter = 10 * time.Minute

// CanStartProcessing rejects boards that are mid-run or already hold a
// result. A board that failed, or whose run went stale, may be analyzed again.
func (w *Whiteboard) CanStartProcessing(now time.Time) error {
	switch w.ProcessingStatus {
	case WhiteboardProcessing:
		if w.UpdatedAt.Before(now.Add(-ProcessingStaleAfter)) {
			return nil
		}
		return ErrAlreadyProcessing()
	case WhiteboardCompleted:
		return pkgerrors.NewConflictError("whiteboard has already been analyzed").WithCode("already_analyzed")
	}
	return nil
}

// ErrAlreadyProcessing is returned while another request owns the run.
func ErrAlreadyProcessing() error {
	return pkgerrors.NewConflictError("whiteboard is already being processed").WithCode("already_processing")
}

// StartProcessing moves the whiteboard into processing.
func (w *Whiteboard) StartProcessing(now time.Time) error {
	if err := w.CanStartProcessing(now); err != nil {
		return err
	}
	w.ProcessingStatus = WhiteboardProcessing
	w.Progress = 0
	w.ErrorMessage = ""
	w.UpdatedAt = now
	return nil
}

// SetProgress records a percentage while processing.
func (w *Whiteboard) SetProgress(progress int, now time.Time) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	w.Progress = progress
	w.UpdatedAt = now
}

// Complete stores the analysis result.
func (w *Whiteboard) Complete(extractedText string, structured json.RawMessage, confidence float64, now time.Time) {
	w.ProcessingStatus = WhiteboardCompleted
	w.Progress = 100
	w.ExtractedText = extractedText
	w.StructuredContent = structured
	w.ConfidenceScore = confidence
	w.ErrorMessage = ""
	w.UpdatedAt = now
	w.ProcessedAt = &now
}

// Fail records an analysis failure.
func (w *Whiteboard) Fail(message string, now time.Time) {
	w.ProcessingStatus = WhiteboardError
	w.ErrorMessage = message
	w.UpdatedAt = now
	w.ProcessedAt = &now
}

// ProgressMessage is the user-facing description of the current step.
func (w *Whiteboard) ProgressMessage() string {
	switch {
	case w.ProcessingStatus == WhiteboardError:
		return "Analysis failed: " + w.ErrorMessage
	case w.ProcessingStatus == WhiteboardCompleted:
		return "Analysis complete!"
	case w.ProcessingStatus == WhiteboardUploaded:
		return "Waiting to start analysis..."
	case w.Progress < 25:
		return "Preparing image for analysis..."
	case w.Progress < 50:
		return "Analyzing whiteboard content..."
	case w.Progress < 75:
		return "Extracting text and structures..."
	case w.Progress < 100:
		return "Finalizing results..."
	default:
		return "Analysis complete!"
	}
}
