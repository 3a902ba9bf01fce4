package services_test

import (
	"encoding/json"
	"testing"
	"time"

	"scribe/application/services"
	"scribe/domain/core/entities"
	"scribe/domain/render"
	"scribe/internal/mocks"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type fixture struct {
	accounts    *mocks.MockAccountRepository
	usage       *mocks.MockLedger
	projects    *mocks.MockProjectRepository
	whiteboards *mocks.MockWhiteboardRepository
	exports     *mocks.MockExportRepository
	store       *mocks.MockObjectStore
	provider    *mocks.MockAnalysisProvider
	publisher   *mocks.MockEventPublisher
	metrics     *mocks.RecordingMetrics

	ledger    *services.LedgerService
	project   *services.ProjectService
	upload    *services.UploadService
	analysis  *services.AnalysisService
	export    *services.ExportService
	admin     *services.AdminService
	dashboard *services.DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		accounts:    new(mocks.MockAccountRepository),
		usage:       new(mocks.MockLedger),
		projects:    new(mocks.MockProjectRepository),
		whiteboards: new(mocks.MockWhiteboardRepository),
		exports:     new(mocks.MockExportRepository),
		store:       new(mocks.MockObjectStore),
		provider:    new(mocks.MockAnalysisProvider),
		publisher:   new(mocks.MockEventPublisher),
		metrics:     &mocks.RecordingMetrics{},
	}
	// Events are best effort; individual tests assert on them when it matters.
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	clock := func() time.Time { return fixedNow }
	logger := zap.NewNop()

	f.ledger = services.NewLedgerService(f.accounts, f.usage, f.publisher, f.metrics, clock, logger)
	f.project = services.NewProjectService(f.projects, f.whiteboards, f.exports, f.store, f.ledger, clock, logger)
	f.upload = services.NewUploadService(f.projects, f.whiteboards, f.store, f.ledger, f.project, clock, logger)
	f.analysis = services.NewAnalysisService(f.projects, f.whiteboards, f.store, f.provider, f.ledger, f.publisher, f.metrics, clock, logger)
	f.export = services.NewExportService(f.projects, f.whiteboards, f.exports, f.store, render.DefaultRegistry(), f.ledger, f.publisher, f.metrics, clock, logger)
	f.admin = services.NewAdminService(f.accounts, f.projects, f.whiteboards, f.exports, f.ledger, clock, logger)
	f.dashboard = services.NewDashboardService(f.projects, f.whiteboards, f.exports)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.accounts.AssertExpectations(t)
	f.usage.AssertExpectations(t)
	f.projects.AssertExpectations(t)
	f.whiteboards.AssertExpectations(t)
	f.exports.AssertExpectations(t)
	f.store.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func freeAccount(t *testing.T, id string, uses int) *entities.Account {
	t.Helper()
	a, err := entities.NewAccount(id+"@example.com", id, "hash", fixedNow.Add(-24*time.Hour))
	require.NoError(t, err)
	a.ID = id
	a.FreeUsesCount = uses
	return a
}

func ownedProjectFixture(t *testing.T, owner, title string) *entities.Project {
	t.Helper()
	p, err := entities.NewProject(owner, title, "", fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	return p
}

func analyzedWhiteboard(t *testing.T, project *entities.Project, doc string, createdAt time.Time) *entities.Whiteboard {
	t.Helper()
	wb, err := entities.NewWhiteboard(project.ID, project.OwnerID, "board.png", "original/x.png", "image/png", 10, createdAt)
	require.NoError(t, err)
	if doc != "" {
		wb.Complete("", json.RawMessage(doc), 0.9, createdAt)
	}
	return wb
}
