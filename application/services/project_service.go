package services

import (
	"context"
	"strings"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// ProjectSummary is a project row in a listing.
type ProjectSummary struct {
	Project         *entities.Project
	WhiteboardCount int
	ExportCount     int
}

// ProjectDetail is a project with its whiteboards in creation order.
type ProjectDetail struct {
	Project     *entities.Project
	Whiteboards []*entities.Whiteboard
}

// ProjectUpdate carries the editable project fields. Nil fields are kept.
type ProjectUpdate struct {
	Title       *string
	Description *string
	Status      *string
}

// ProjectService manages projects and their cascades.
type ProjectService struct {
	projects    ports.ProjectRepository
	whiteboards ports.WhiteboardRepository
	exports     ports.ExportRepository
	store       ports.ObjectStore
	ledger      *LedgerService
	clock       Clock
	logger      *zap.Logger
}

// NewProjectService creates a new project service
func NewProjectService(
	projects ports.ProjectRepository,
	whiteboards ports.WhiteboardRepository,
	exports ports.ExportRepository,
	store ports.ObjectStore,
	ledger *LedgerService,
	clock Clock,
	logger *zap.Logger,
) *ProjectService {
	if clock == nil {
		clock = SystemClock
	}
	return &ProjectService{
		projects:    projects,
		whiteboards: whiteboards,
		exports:     exports,
		store:       store,
		ledger:      ledger,
		clock:       clock,
		logger:      logger,
	}
}

// List returns a page of the owner's projects with their counts. A query
// narrows the page to matching titles.
func (s *ProjectService) List(ctx context.Context, ownerID string, opts ports.ListOptions) ([]ProjectSummary, int, error) {
	projects, total, err := s.projects.ListByOwner(ctx, ownerID, opts)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		wbs, err := s.whiteboards.ListByProject(ctx, p.ID)
		if err != nil {
			return nil, 0, err
		}
		exps, err := s.exports.ListByProject(ctx, p.ID)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, ProjectSummary{
			Project:         p,
			WhiteboardCount: len(wbs),
			ExportCount:     len(exps),
		})
	}
	return summaries, total, nil
}

// Create starts a draft project and counts it on the account.
func (s *ProjectService) Create(ctx context.Context, ownerID, title, description string) (*entities.Project, error) {
	project, err := entities.NewProject(ownerID, title, description, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}
	if err := s.ledger.Record(ctx, ownerID, valueobjects.UsageProject); err != nil {
		// The project exists; a missed counter is only logged.
		s.logger.Warn("Failed to record project creation",
			zap.String("projectID", project.ID),
			zap.Error(err),
		)
	}

	s.logger.Debug("Project created",
		zap.String("projectID", project.ID),
		zap.String("ownerID", ownerID),
	)
	return project, nil
}

// Get returns an owned project with its whiteboards.
func (s *ProjectService) Get(ctx context.Context, ownerID, projectID string) (*ProjectDetail, error) {
	project, err := ownedProject(ctx, s.projects, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, project)
}

// GetShared returns a project through its public share token.
func (s *ProjectService) GetShared(ctx context.Context, token string) (*ProjectDetail, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.NewNotFoundError("shared project")
	}
	project, err := s.projects.GetByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, project)
}

// Update edits the title, description or status of an owned project.
func (s *ProjectService) Update(ctx context.Context, ownerID, projectID string, update ProjectUpdate) (*entities.Project, error) {
	project, err := ownedProject(ctx, s.projects, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		project.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		project.Description = strings.TrimSpace(*update.Description)
	}
	if update.Status != nil {
		status, err := entities.ParseProjectStatus(*update.Status)
		if err != nil {
			return nil, err
		}
		project.Status = status
	}
	project.UpdatedAt = s.clock()

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Share issues a new public share token, replacing any earlier one.
func (s *ProjectService) Share(ctx context.Context, ownerID, projectID string) (*entities.Project, error) {
	project, err := ownedProject(ctx, s.projects, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	project.Share(s.clock())
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Unshare revokes the public share token.
func (s *ProjectService) Unshare(ctx context.Context, ownerID, projectID string) (*entities.Project, error) {
	project, err := ownedProject(ctx, s.projects, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	project.Unshare(s.clock())
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes an owned project, its whiteboards, its exports and their
// stored files.
func (s *ProjectService) Delete(ctx context.Context, ownerID, projectID string) error {
	project, err := ownedProject(ctx, s.projects, ownerID, projectID)
	if err != nil {
		return err
	}
	return s.delete(ctx, project)
}

// DeleteAllForOwner removes every project of an account and returns how many
// were deleted.
func (s *ProjectService) DeleteAllForOwner(ctx context.Context, ownerID string) (int, error) {
	const pageSize = 100
	removed := 0
	for {
		// Each pass deletes what it lists, so the first page is always fresh.
		projects, _, err := s.projects.ListByOwner(ctx, ownerID, ports.ListOptions{Limit: pageSize})
		if err != nil {
			return removed, err
		}
		if len(projects) == 0 {
			return removed, nil
		}
		for _, p := range projects {
			if err := s.delete(ctx, p); err != nil {
				return removed, err
			}
			removed++
		}
	}
}

func (s *ProjectService) delete(ctx context.Context, project *entities.Project) error {
	wbs, err := s.whiteboards.ListByProject(ctx, project.ID)
	if err != nil {
		return err
	}
	exps, err := s.exports.ListByProject(ctx, project.ID)
	if err != nil {
		return err
	}

	if err := s.projects.Delete(ctx, project.ID); err != nil {
		return err
	}

	for _, wb := range wbs {
		s.removeObject(ctx, wb.ImagePath)
	}
	for _, e := range exps {
		s.removeObject(ctx, e.FilePath)
	}

	s.logger.Info("Project deleted",
		zap.String("projectID", project.ID),
		zap.Int("whiteboards", len(wbs)),
		zap.Int("exports", len(exps)),
	)
	return nil
}

// removeObject deletes a stored file. Orphaned files are logged, not fatal.
func (s *ProjectService) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete stored object",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (s *ProjectService) detail(ctx context.Context, project *entities.Project) (*ProjectDetail, error) {
	wbs, err := s.whiteboards.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectDetail{Project: project, Whiteboards: wbs}, nil
}
