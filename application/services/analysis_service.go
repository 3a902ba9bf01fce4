package services

import (
	"context"
	"encoding/json"
	"time"

	"scribe/application/ports"
	"scribe/domain/content"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/events"
	pkgerrors "scribe/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	analysisSucceeded = "success"
	analysisFailed    = "error"
)

// AnalysisService runs whiteboard photos through the vision provider and
// stores the structured result.
type AnalysisService struct {
	projects    ports.ProjectRepository
	whiteboards ports.WhiteboardRepository
	store       ports.ObjectStore
	provider    ports.AnalysisProvider
	ledger      *LedgerService
	publisher   ports.EventPublisher
	metrics     ports.Metrics
	clock       Clock
	logger      *zap.Logger
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	projects ports.ProjectRepository,
	whiteboards ports.WhiteboardRepository,
	store ports.ObjectStore,
	provider ports.AnalysisProvider,
	ledger *LedgerService,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	clock Clock,
	logger *zap.Logger,
) *AnalysisService {
	if clock == nil {
		clock = SystemClock
	}
	return &AnalysisService{
		projects:    projects,
		whiteboards: whiteboards,
		store:       store,
		provider:    provider,
		ledger:      ledger,
		publisher:   publisher,
		metrics:     metrics,
		clock:       clock,
		logger:      logger,
	}
}

// Analyze charges one image use and processes the whiteboard synchronously.
// The use stays charged when the vendor call or the parse fails.
func (s *AnalysisService) Analyze(ctx context.Context, ownerID, whiteboardID string) (*entities.Whiteboard, error) {
	ctx, span := otel.Tracer("scribe/analysis").Start(ctx, "AnalysisService.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("whiteboard.id", whiteboardID))

	wb, err := s.owned(ctx, ownerID, whiteboardID)
	if err != nil {
		return nil, err
	}
	start := s.clock()
	// Checked before charging so a rejected request costs nothing.
	if err := wb.CanStartProcessing(start); err != nil {
		return nil, err
	}

	_, account, err := s.ledger.Authorize(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	// Only one caller wins the claim; losers are never charged.
	claimed, err := s.whiteboards.BeginProcessing(ctx, wb.ID, start, start.Add(-entities.ProcessingStaleAfter))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, entities.ErrAlreadyProcessing()
	}

	// Terminal transitions are persisted even when the caller goes away.
	final := context.WithoutCancel(ctx)
	if _, err := s.ledger.Consume(ctx, ownerID, valueobjects.UsageImage); err != nil {
		// wb still holds the pre-claim state.
		if rerr := s.whiteboards.Update(final, wb); rerr != nil {
			s.logger.Error("Failed to release processing claim",
				zap.String("whiteboardID", wb.ID),
				zap.Error(rerr),
			)
		}
		return nil, err
	}
	if err := wb.StartProcessing(start); err != nil {
		return nil, err
	}
	s.logger.Info("Analysis started",
		zap.String("whiteboardID", wb.ID),
		zap.String("projectID", wb.ProjectID),
	)

	sc, reply, err := s.run(ctx, wb, account)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(final, wb, err, start)
		return nil, err
	}

	raw, err := sc.Marshal()
	if err != nil {
		s.fail(final, wb, err, start)
		return nil, pkgerrors.Wrap(err, "encode structured content")
	}
	now := s.clock()
	wb.Complete(sc.RawText, json.RawMessage(raw), sc.Confidence, now)
	if err := s.whiteboards.Update(final, wb); err != nil {
		s.fail(final, wb, err, start)
		return nil, err
	}

	s.adoptTitle(final, wb.ProjectID, sc.Title, now)

	took := now.Sub(start)
	s.metrics.RecordAnalysis(analysisSucceeded, took)
	s.logger.Info("Analysis completed",
		zap.String("whiteboardID", wb.ID),
		zap.String("model", reply.Model),
		zap.Float64("confidence", sc.Confidence),
		zap.Duration("took", took),
	)
	publishEvent(final, s.publisher, s.logger, events.NewWhiteboardAnalyzed(wb.ID, wb.ProjectID, ownerID, sc.Confidence, now))
	return wb, nil
}

// run loads the image, calls the provider and parses its reply, moving the
// progress marker along the way.
func (s *AnalysisService) run(ctx context.Context, wb *entities.Whiteboard, account *entities.Account) (*content.StructuredContent, *ports.AnalysisReply, error) {
	image, err := s.store.Get(ctx, wb.ImagePath)
	if err != nil {
		return nil, nil, err
	}
	s.progress(ctx, wb, 25)

	reply, err := s.provider.Analyze(ctx, ports.AnalysisRequest{
		Image:    image,
		MimeType: wb.MimeType,
		APIKey:   account.CustomAPIKey,
		Language: account.PreferredLanguage,
	})
	if err != nil {
		if pkgerrors.GetAppError(err) == nil {
			err = pkgerrors.NewAnalysisTransportError(err)
		}
		return nil, nil, err
	}
	s.progress(ctx, wb, 50)

	sc, err := content.Parse([]byte(content.ExtractJSON(reply.Text)))
	if err != nil {
		return nil, nil, pkgerrors.NewAnalysisError("analysis reply is not a structured content object", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, nil, pkgerrors.NewAnalysisError("analysis reply failed validation: "+err.Error(), err)
	}
	s.progress(ctx, wb, 75)
	return sc, reply, nil
}

func (s *AnalysisService) progress(ctx context.Context, wb *entities.Whiteboard, pct int) {
	wb.SetProgress(pct, s.clock())
	if err := s.whiteboards.Update(ctx, wb); err != nil {
		s.logger.Warn("Failed to store progress",
			zap.String("whiteboardID", wb.ID),
			zap.Int("progress", pct),
			zap.Error(err),
		)
	}
}

func (s *AnalysisService) fail(ctx context.Context, wb *entities.Whiteboard, cause error, start time.Time) {
	now := s.clock()
	message := cause.Error()
	if appErr := pkgerrors.GetAppError(cause); appErr != nil {
		message = appErr.Message
	}
	wb.Fail(message, now)
	if err := s.whiteboards.Update(ctx, wb); err != nil {
		s.logger.Error("Failed to store analysis failure",
			zap.String("whiteboardID", wb.ID),
			zap.Error(err),
		)
	}

	s.metrics.RecordAnalysis(analysisFailed, now.Sub(start))
	s.logger.Error("Analysis failed",
		zap.String("whiteboardID", wb.ID),
		zap.Error(cause),
	)
	publishEvent(ctx, s.publisher, s.logger, events.NewWhiteboardFailed(wb.ID, wb.ProjectID, wb.OwnerID, message, now))
}

// adoptTitle names an untitled project after the analyzed content.
func (s *AnalysisService) adoptTitle(ctx context.Context, projectID, title string, now time.Time) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		s.logger.Warn("Failed to load project for title", zap.String("projectID", projectID), zap.Error(err))
		return
	}
	if !project.AdoptTitle(title, now) {
		return
	}
	if err := s.projects.Update(ctx, project); err != nil {
		s.logger.Warn("Failed to store adopted title", zap.String("projectID", projectID), zap.Error(err))
	}
}

// Whiteboard returns an owned whiteboard, for progress polling.
func (s *AnalysisService) Whiteboard(ctx context.Context, ownerID, whiteboardID string) (*entities.Whiteboard, error) {
	return s.owned(ctx, ownerID, whiteboardID)
}

// Content returns the structured content of an analyzed whiteboard.
func (s *AnalysisService) Content(ctx context.Context, ownerID, whiteboardID string) (*entities.Whiteboard, *content.StructuredContent, error) {
	wb, err := s.owned(ctx, ownerID, whiteboardID)
	if err != nil {
		return nil, nil, err
	}
	if wb.ProcessingStatus != entities.WhiteboardCompleted || len(wb.StructuredContent) == 0 {
		return nil, nil, pkgerrors.NewNotFoundError("content")
	}
	sc, err := content.Parse(wb.StructuredContent)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "stored content is damaged")
	}
	return wb, sc, nil
}

func (s *AnalysisService) owned(ctx context.Context, ownerID, whiteboardID string) (*entities.Whiteboard, error) {
	wb, err := s.whiteboards.GetByID(ctx, whiteboardID)
	if err != nil {
		return nil, err
	}
	if wb.OwnerID != ownerID {
		return nil, pkgerrors.NewNotFoundError("whiteboard")
	}
	return wb, nil
}
