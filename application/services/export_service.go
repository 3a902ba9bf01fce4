package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/events"
	"scribe/domain/render"
	pkgerrors "scribe/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// purgeBatchSize is how many expired exports are removed per listing.
const purgeBatchSize = 100

// GenerateInput is an export request.
type GenerateInput struct {
	ProjectID string
	Format    string
	// Options is the raw per-format options object; empty means defaults.
	Options json.RawMessage
}

// Download is a completed artifact ready to be served.
type Download struct {
	Export      *entities.Export
	Data        []byte
	ContentType string
}

// ExportService renders projects into documents.
type ExportService struct {
	projects    ports.ProjectRepository
	whiteboards ports.WhiteboardRepository
	exports     ports.ExportRepository
	store       ports.ObjectStore
	renderers   *render.Registry
	ledger      *LedgerService
	publisher   ports.EventPublisher
	metrics     ports.Metrics
	clock       Clock
	logger      *zap.Logger
}

// NewExportService creates a new export service
func NewExportService(
	projects ports.ProjectRepository,
	whiteboards ports.WhiteboardRepository,
	exports ports.ExportRepository,
	store ports.ObjectStore,
	renderers *render.Registry,
	ledger *LedgerService,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	clock Clock,
	logger *zap.Logger,
) *ExportService {
	if clock == nil {
		clock = SystemClock
	}
	if renderers == nil {
		renderers = render.DefaultRegistry()
	}
	return &ExportService{
		projects:    projects,
		whiteboards: whiteboards,
		exports:     exports,
		store:       store,
		renderers:   renderers,
		ledger:      ledger,
		publisher:   publisher,
		metrics:     metrics,
		clock:       clock,
		logger:      logger,
	}
}

// Generate renders a project synchronously. A project without usable
// content is rejected before anything is charged or recorded. Once the use
// is charged exactly one export record is written, and it ends either
// completed or in error.
func (s *ExportService) Generate(ctx context.Context, ownerID string, in GenerateInput) (*entities.Export, error) {
	format, err := valueobjects.ParseExportFormat(in.Format)
	if err != nil {
		return nil, err
	}
	opts, err := valueobjects.ParseExportOptions(format, in.Options)
	if err != nil {
		return nil, err
	}

	project, err := ownedProject(ctx, s.projects, ownerID, in.ProjectID)
	if err != nil {
		return nil, err
	}

	doc, err := s.document(ctx, project, opts)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Consume(ctx, ownerID, valueobjects.UsageExport); err != nil {
		return nil, err
	}

	start := s.clock()
	export, err := entities.NewExport(project, opts, start)
	if err != nil {
		return nil, err
	}
	if err := s.exports.Create(ctx, export); err != nil {
		return nil, err
	}

	// The record must reach a terminal state even when the caller goes away.
	final := context.WithoutCancel(ctx)
	if err := s.produce(ctx, export, doc, opts); err != nil {
		s.finishFailed(final, export, err, start)
		return export, err
	}

	now := s.clock()
	if err := s.exports.Update(final, export); err != nil {
		if derr := s.store.Delete(final, export.FilePath); derr != nil {
			s.logger.Warn("Failed to remove orphaned export artifact",
				zap.String("exportID", export.ID),
				zap.String("path", export.FilePath),
				zap.Error(derr),
			)
		}
		s.finishFailed(final, export, err, start)
		return export, err
	}

	took := now.Sub(start)
	s.metrics.RecordExport(format, valueobjects.ExportCompleted, took)
	s.logger.Info("Export completed",
		zap.String("exportID", export.ID),
		zap.String("projectID", project.ID),
		zap.String("format", string(format)),
		zap.Int64("size", export.FileSize),
		zap.Int("whiteboards", len(doc.Boards)),
		zap.Duration("took", took),
	)
	publishEvent(final, s.publisher, s.logger, events.NewExportCompleted(export.ID, project.ID, ownerID, format, export.FileSize, now))
	return export, nil
}

// document builds the render input from the project's whiteboards in
// creation order.
func (s *ExportService) document(ctx context.Context, project *entities.Project, opts valueobjects.ExportOptions) (*render.Document, error) {
	wbs, err := s.whiteboards.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(wbs, func(i, j int) bool { return wbs[i].CreatedAt.Before(wbs[j].CreatedAt) })

	withImages := false
	if o, ok := opts.(valueobjects.PPTXOptions); ok {
		withImages = o.IncludeImages
	}

	inputs := make([]render.BoardInput, 0, len(wbs))
	for _, wb := range wbs {
		in := render.BoardInput{
			Name:     wb.OriginalFilename,
			Content:  wb.StructuredContent,
			MimeType: wb.MimeType,
		}
		if withImages && len(wb.StructuredContent) > 0 && wb.ImagePath != "" {
			in.Image = s.slideImage(ctx, wb)
		}
		inputs = append(inputs, in)
	}

	return render.NewDocument(project.Title, project.Description, inputs, s.clock())
}

// slideImage loads a whiteboard photo for the deck. Formats slides cannot
// hold and unreadable objects are logged and left out.
func (s *ExportService) slideImage(ctx context.Context, wb *entities.Whiteboard) []byte {
	if !render.EmbeddableImage(wb.MimeType) {
		s.logger.Info("Whiteboard image format cannot be embedded in slides",
			zap.String("whiteboardID", wb.ID),
			zap.String("mimeType", wb.MimeType),
		)
		return nil
	}
	image, err := s.store.Get(ctx, wb.ImagePath)
	if err != nil {
		s.logger.Warn("Skipping whiteboard image",
			zap.String("whiteboardID", wb.ID),
			zap.Error(err),
		)
		return nil
	}
	return image
}

// produce renders and stores the artifact, completing the export in memory.
func (s *ExportService) produce(ctx context.Context, export *entities.Export, doc *render.Document, opts valueobjects.ExportOptions) error {
	ctx, span := otel.Tracer("scribe/export").Start(ctx, "ExportService.Render")
	defer span.End()
	span.SetAttributes(
		attribute.String("export.id", export.ID),
		attribute.String("export.format", string(export.Format)),
		attribute.Int("export.whiteboards", len(doc.Boards)),
	)

	artifact, err := s.renderers.Render(doc, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return pkgerrors.Wrapf(err, "render %s", export.Format)
	}

	key := fmt.Sprintf("exports/%s/%s", export.ID, export.Filename)
	if err := s.store.Put(ctx, key, artifact.Data, artifact.ContentType); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	export.Complete(key, int64(len(artifact.Data)), s.clock())
	return nil
}

func (s *ExportService) finishFailed(ctx context.Context, export *entities.Export, cause error, start time.Time) {
	now := s.clock()
	message := cause.Error()
	if appErr := pkgerrors.GetAppError(cause); appErr != nil {
		message = appErr.Message
	}
	export.Fail(message, now)
	if err := s.exports.Update(ctx, export); err != nil {
		s.logger.Error("Failed to store export failure",
			zap.String("exportID", export.ID),
			zap.Error(err),
		)
	}

	s.metrics.RecordExport(export.Format, valueobjects.ExportError, now.Sub(start))
	s.logger.Error("Export failed",
		zap.String("exportID", export.ID),
		zap.String("format", string(export.Format)),
		zap.Error(cause),
	)
	publishEvent(ctx, s.publisher, s.logger, events.NewExportFailed(export.ID, export.ProjectID, export.OwnerID, export.Format, message, now))
}

// Get returns an owned export.
func (s *ExportService) Get(ctx context.Context, ownerID, exportID string) (*entities.Export, error) {
	export, err := s.exports.GetByID(ctx, exportID)
	if err != nil {
		return nil, err
	}
	if export.OwnerID != ownerID {
		return nil, pkgerrors.NewNotFoundError("export")
	}
	return export, nil
}

// ListByProject returns the exports of an owned project, newest first.
func (s *ExportService) ListByProject(ctx context.Context, ownerID, projectID string) ([]*entities.Export, error) {
	if _, err := ownedProject(ctx, s.projects, ownerID, projectID); err != nil {
		return nil, err
	}
	exports, err := s.exports.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(exports, func(i, j int) bool { return exports[i].CreatedAt.After(exports[j].CreatedAt) })
	return exports, nil
}

// Download reads a completed artifact and counts the download.
func (s *ExportService) Download(ctx context.Context, ownerID, exportID string) (*Download, error) {
	export, err := s.Get(ctx, ownerID, exportID)
	if err != nil {
		return nil, err
	}
	if !export.Downloadable() {
		return nil, pkgerrors.NewConflictError("export is not ready for download").
			WithCode("export_not_ready").
			WithDetails(map[string]interface{}{"status": string(export.Status)})
	}

	data, err := s.store.Get(ctx, export.FilePath)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := s.exports.RecordDownload(ctx, export.ID, now); err != nil {
		s.logger.Warn("Failed to count download", zap.String("exportID", export.ID), zap.Error(err))
	} else {
		export.DownloadCount++
		export.LastDownloaded = &now
	}

	return &Download{
		Export:      export,
		Data:        data,
		ContentType: export.Format.ContentType(),
	}, nil
}

// Purge removes exports created more than retention ago, with their files,
// and returns how many were removed.
func (s *ExportService) Purge(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, pkgerrors.NewValidationError("retention must be positive")
	}
	cutoff := s.clock().Add(-retention)

	removed := 0
	for {
		batch, err := s.exports.ListCreatedBefore(ctx, cutoff, purgeBatchSize)
		if err != nil {
			return removed, err
		}
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			if e.FilePath != "" {
				if err := s.store.Delete(ctx, e.FilePath); err != nil {
					return removed, err
				}
			}
			if err := s.exports.Delete(ctx, e.ID); err != nil {
				return removed, err
			}
			removed++
		}
		if len(batch) < purgeBatchSize {
			break
		}
	}

	s.logger.Info("Expired exports purged",
		zap.Int("removed", removed),
		zap.Time("cutoff", cutoff),
	)
	return removed, nil
}
