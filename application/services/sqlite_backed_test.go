package services_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/application/ports"
	"scribe/application/services"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/render"
	"scribe/infrastructure/persistence/sqlite"
	"scribe/infrastructure/storage"
	"scribe/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// storedFixture wires the services to a real SQLite database and a local
// object store, so state written on a cancelled request can be read back.
type storedFixture struct {
	accounts    *sqlite.AccountRepository
	projects    *sqlite.ProjectRepository
	whiteboards *sqlite.WhiteboardRepository
	exports     *sqlite.ExportRepository
	files       *storage.LocalStore
	provider    *mocks.MockAnalysisProvider
	ledger      *services.LedgerService
}

func newStoredFixture(t *testing.T) *storedFixture {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(context.Background(), filepath.Join(dir, "scribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := zap.NewNop()
	files, err := storage.NewLocalStore(filepath.Join(dir, "objects"), logger)
	require.NoError(t, err)

	publisher := new(mocks.MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	accounts := sqlite.NewAccountRepository(db, logger)
	clock := func() time.Time { return fixedNow }

	return &storedFixture{
		accounts:    accounts,
		projects:    sqlite.NewProjectRepository(db, logger),
		whiteboards: sqlite.NewWhiteboardRepository(db, logger),
		exports:     sqlite.NewExportRepository(db, logger),
		files:       files,
		provider:    new(mocks.MockAnalysisProvider),
		ledger:      services.NewLedgerService(accounts, sqlite.NewUsageLedger(db, logger), publisher, &mocks.RecordingMetrics{}, clock, logger),
	}
}

func (f *storedFixture) analysis(store ports.ObjectStore) *services.AnalysisService {
	publisher := new(mocks.MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	return services.NewAnalysisService(f.projects, f.whiteboards, store, f.provider, f.ledger, publisher,
		&mocks.RecordingMetrics{}, func() time.Time { return fixedNow }, zap.NewNop())
}

func (f *storedFixture) export(store ports.ObjectStore) *services.ExportService {
	publisher := new(mocks.MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	return services.NewExportService(f.projects, f.whiteboards, f.exports, store, render.DefaultRegistry(), f.ledger,
		publisher, &mocks.RecordingMetrics{}, func() time.Time { return fixedNow }, zap.NewNop())
}

func (f *storedFixture) seedProject(t *testing.T, title string) (*entities.Account, *entities.Project) {
	t.Helper()
	ctx := context.Background()
	a, err := entities.NewAccount("ana@example.com", "ana", "hash", fixedNow.Add(-24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.accounts.Create(ctx, a))
	p := ownedProjectFixture(t, a.ID, title)
	require.NoError(t, f.projects.Create(ctx, p))
	return a, p
}

// cancellingStore cancels the request context while an export artifact is
// being written. With written set the artifact lands before the cancel.
type cancellingStore struct {
	ports.ObjectStore
	cancel  context.CancelFunc
	written bool
}

func (s *cancellingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if !strings.HasPrefix(key, "exports/") {
		return s.ObjectStore.Put(ctx, key, data, contentType)
	}
	if !s.written {
		s.cancel()
		return ctx.Err()
	}
	err := s.ObjectStore.Put(ctx, key, data, contentType)
	s.cancel()
	return err
}

func TestExportService_Generate_CancelledDuringWriteIsStoredAsError(t *testing.T) {
	f := newStoredFixture(t)
	a, project := f.seedProject(t, "Q3 Plan")
	require.NoError(t, f.whiteboards.Create(context.Background(), analyzedWhiteboard(t, project, boardOne, fixedNow)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := f.export(&cancellingStore{ObjectStore: f.files, cancel: cancel})

	export, err := svc.Generate(ctx, a.ID, services.GenerateInput{ProjectID: project.ID, Format: "markdown"})
	require.Error(t, err)
	require.NotNil(t, export)

	stored, err := f.exports.GetByID(context.Background(), export.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.ExportError, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
	assert.Empty(t, stored.FilePath)
}

func TestExportService_Generate_CancelledAfterWriteIsStoredAsCompleted(t *testing.T) {
	f := newStoredFixture(t)
	a, project := f.seedProject(t, "Q3 Plan")
	require.NoError(t, f.whiteboards.Create(context.Background(), analyzedWhiteboard(t, project, boardOne, fixedNow)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := f.export(&cancellingStore{ObjectStore: f.files, cancel: cancel, written: true})

	export, err := svc.Generate(ctx, a.ID, services.GenerateInput{ProjectID: project.ID, Format: "markdown"})
	require.NoError(t, err)

	stored, err := f.exports.GetByID(context.Background(), export.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.ExportCompleted, stored.Status)
	data, err := f.files.Get(context.Background(), stored.FilePath)
	require.NoError(t, err)
	assert.Equal(t, stored.FileSize, int64(len(data)))
}

func TestAnalysisService_Analyze_CancelledRunCanBeRetried(t *testing.T) {
	f := newStoredFixture(t)
	ctx := context.Background()
	a, project := f.seedProject(t, "")
	wb, err := entities.NewWhiteboard(project.ID, a.ID, "board.png", "original/b.png", "image/png", 4, fixedNow)
	require.NoError(t, err)
	require.NoError(t, f.whiteboards.Create(ctx, wb))
	require.NoError(t, f.files.Put(ctx, wb.ImagePath, []byte("png!"), "image/png"))
	svc := f.analysis(f.files)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	f.provider.On("Analyze", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()

	_, err = svc.Analyze(reqCtx, a.ID, wb.ID)
	require.Error(t, err)

	stored, err := f.whiteboards.GetByID(ctx, wb.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.WhiteboardError, stored.ProcessingStatus)

	f.provider.On("Analyze", mock.Anything, mock.Anything).
		Return(&ports.AnalysisReply{Text: vendorReply, Model: "vision-1"}, nil).Once()

	got, err := svc.Analyze(ctx, a.ID, wb.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.WhiteboardCompleted, got.ProcessingStatus)

	stored, err = f.whiteboards.GetByID(ctx, wb.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.WhiteboardCompleted, stored.ProcessingStatus)
	account, err := f.accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, account.FreeUsesCount, "the cancelled run stays charged")
	f.provider.AssertExpectations(t)
}
