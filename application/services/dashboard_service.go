package services

import (
	"context"

	"scribe/application/ports"
	"scribe/domain/core/entities"
)

const recentProjectLimit = 5

// Dashboard is the landing page summary of an account.
type Dashboard struct {
	ProjectCount    int
	WhiteboardCount int
	ExportCount     int
	RecentProjects  []*entities.Project
}

// DashboardService assembles the landing page.
type DashboardService struct {
	projects    ports.ProjectRepository
	whiteboards ports.WhiteboardRepository
	exports     ports.ExportRepository
}

func NewDashboardService(
	projects ports.ProjectRepository,
	whiteboards ports.WhiteboardRepository,
	exports ports.ExportRepository,
) *DashboardService {
	return &DashboardService{projects: projects, whiteboards: whiteboards, exports: exports}
}

func (s *DashboardService) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	recent, total, err := s.projects.ListByOwner(ctx, ownerID, ports.ListOptions{Limit: recentProjectLimit})
	if err != nil {
		return nil, err
	}
	wbs, err := s.whiteboards.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	exps, err := s.exports.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		ProjectCount:    total,
		WhiteboardCount: wbs,
		ExportCount:     exps,
		RecentProjects:  recent,
	}, nil
}
