package services

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	pkgerrors "scribe/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxUploadBytes is the largest accepted image.
const MaxUploadBytes = 16 << 20

// allowedImageTypes maps accepted extensions to the stored content type.
var allowedImageTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"heic": "image/heic",
}

// UploadInput is one uploaded whiteboard photo.
type UploadInput struct {
	// ProjectID is optional; a new project is created when it is empty.
	ProjectID string
	Filename  string
	Data      []byte
}

// UploadResult reports the stored whiteboard and the project it joined.
type UploadResult struct {
	Whiteboard     *entities.Whiteboard
	Project        *entities.Project
	ProjectCreated bool
}

// UploadService stores whiteboard photos.
type UploadService struct {
	projects    ports.ProjectRepository
	whiteboards ports.WhiteboardRepository
	store       ports.ObjectStore
	ledger      *LedgerService
	projectSvc  *ProjectService
	clock       Clock
	logger      *zap.Logger
}

// NewUploadService creates a new upload service
func NewUploadService(
	projects ports.ProjectRepository,
	whiteboards ports.WhiteboardRepository,
	store ports.ObjectStore,
	ledger *LedgerService,
	projectSvc *ProjectService,
	clock Clock,
	logger *zap.Logger,
) *UploadService {
	if clock == nil {
		clock = SystemClock
	}
	return &UploadService{
		projects:    projects,
		whiteboards: whiteboards,
		store:       store,
		ledger:      ledger,
		projectSvc:  projectSvc,
		clock:       clock,
		logger:      logger,
	}
}

// Upload checks the image, stores it and records a whiteboard in the
// uploaded state. Uploading is not charged, but an account that could not
// analyze the image is turned away here.
func (s *UploadService) Upload(ctx context.Context, ownerID string, in UploadInput) (*UploadResult, error) {
	ext, mimeType, err := DetectImageType(in.Filename, in.Data)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.RequireAuthorized(ctx, ownerID); err != nil {
		return nil, err
	}

	result := &UploadResult{}
	if in.ProjectID != "" {
		project, err := ownedProject(ctx, s.projects, ownerID, in.ProjectID)
		if err != nil {
			return nil, err
		}
		result.Project = project
	} else {
		project, err := s.projectSvc.Create(ctx, ownerID, "", "")
		if err != nil {
			return nil, err
		}
		result.Project = project
		result.ProjectCreated = true
	}

	key := fmt.Sprintf("original/%s.%s", uuid.NewString(), ext)
	if err := s.store.Put(ctx, key, in.Data, mimeType); err != nil {
		return nil, err
	}

	wb, err := entities.NewWhiteboard(result.Project.ID, ownerID, filepath.Base(in.Filename), key, mimeType, int64(len(in.Data)), s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.whiteboards.Create(ctx, wb); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	result.Whiteboard = wb

	s.logger.Info("Whiteboard uploaded",
		zap.String("whiteboardID", wb.ID),
		zap.String("projectID", wb.ProjectID),
		zap.String("mimeType", mimeType),
		zap.Int64("size", wb.FileSize),
	)
	return result, nil
}

// DetectImageType validates an upload by extension and content and returns
// the normalized extension and content type.
func DetectImageType(filename string, data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", pkgerrors.NewValidationError("no image data received")
	}
	if len(data) > MaxUploadBytes {
		return "", "", pkgerrors.NewValidationError(
			fmt.Sprintf("image exceeds the %d MiB limit", MaxUploadBytes>>20)).WithCode("file_too_large")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	mimeType, ok := allowedImageTypes[ext]
	if !ok {
		return "", "", pkgerrors.NewValidationError(
			"unsupported file type, allowed: png, jpg, jpeg, gif, webp, heic").WithCode("unsupported_type")
	}

	sniffed := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(sniffed, "image/"):
		if ext != "heic" {
			mimeType = sniffed
		}
	case ext == "heic" && sniffed == "application/octet-stream":
		// HEIC has no sniffing signature; trust the extension.
	default:
		return "", "", pkgerrors.NewValidationError("file content is not an image").WithCode("unsupported_type")
	}
	return ext, mimeType, nil
}
