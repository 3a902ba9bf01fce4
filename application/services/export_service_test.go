package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"scribe/application/services"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"
	pkgerrors "scribe/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const boardOne = `{"title":"Kickoff","sections":[{"heading":"Goals","content":"Launch in May"}],` +
	`"action_items":[{"task":"Draft plan","assignee":"Lee"}],"confidence_score":0.4}`

const boardTwo = `{"title":"Risks","key_points":["Budget","Hiring"],"confidence_score":0}`

func TestExportService_Generate_Markdown(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	project := ownedProjectFixture(t, "acc-1", "Q3 Plan")
	first := analyzedWhiteboard(t, project, boardOne, fixedNow.Add(-2*time.Minute))
	second := analyzedWhiteboard(t, project, boardTwo, fixedNow.Add(-time.Minute))

	f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	// Listed out of order; the export must follow creation order.
	f.whiteboards.On("ListByProject", mock.Anything, project.ID).Return([]*entities.Whiteboard{second, first}, nil)
	f.usage.On("Consume", mock.Anything, "acc-1", valueobjects.UsageExport, fixedNow).
		Return(ledger.Allowed(ledger.BasisFreeQuota), nil)
	f.exports.On("Create", mock.Anything, mock.AnythingOfType("*entities.Export")).Return(nil)

	var stored []byte
	f.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "exports/") && strings.HasSuffix(key, "Q3_Plan_20250314_092653.md")
	}), mock.Anything, "text/markdown; charset=utf-8").
		Run(func(args mock.Arguments) { stored = args.Get(2).([]byte) }).
		Return(nil)
	f.exports.On("Update", mock.Anything, mock.MatchedBy(func(e *entities.Export) bool {
		return e.Status == valueobjects.ExportCompleted
	})).Return(nil)

	// Act
	export, err := f.export.Generate(ctx, "acc-1", services.GenerateInput{ProjectID: project.ID, Format: "markdown"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, valueobjects.ExportCompleted, export.Status)
	assert.True(t, export.Downloadable())
	assert.Equal(t, int64(len(stored)), export.FileSize)

	md := string(stored)
	assert.True(t, strings.HasPrefix(md, "# Q3 Plan\n"))
	i1 := strings.Index(md, "## Whiteboard 1")
	i2 := strings.Index(md, "## Whiteboard 2")
	require.True(t, i1 >= 0 && i2 > i1, md)
	assert.Less(t, strings.Index(md, "### Goals"), i2)
	assert.Contains(t, md, "- [ ] Draft plan (@Lee)")
	assert.Equal(t, []valueobjects.ExportStatus{valueobjects.ExportCompleted}, f.metrics.Exports)
	f.assertExpectations(t)
}

func TestExportService_Generate_NoContentIsNotCharged(t *testing.T) {
	f := newFixture(t)
	project := ownedProjectFixture(t, "acc-1", "Empty")
	blank := analyzedWhiteboard(t, project, "", fixedNow)
	broken := analyzedWhiteboard(t, project, `["not","an","object"]`, fixedNow)
	f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	f.whiteboards.On("ListByProject", mock.Anything, project.ID).Return([]*entities.Whiteboard{blank, broken}, nil)

	_, err := f.export.Generate(context.Background(), "acc-1", services.GenerateInput{ProjectID: project.ID, Format: "pptx"})

	assert.True(t, pkgerrors.IsNoContent(err))
	f.usage.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.exports.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExportService_Generate_RejectsUnknownOption(t *testing.T) {
	f := newFixture(t)

	_, err := f.export.Generate(context.Background(), "acc-1", services.GenerateInput{
		ProjectID: "p",
		Format:    "notion",
		Options:   json.RawMessage(`{"include_macros":true}`),
	})

	assert.True(t, pkgerrors.IsValidation(err))
	f.projects.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestExportService_Generate_Denied(t *testing.T) {
	f := newFixture(t)
	project := ownedProjectFixture(t, "acc-1", "P")
	f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	f.whiteboards.On("ListByProject", mock.Anything, project.ID).
		Return([]*entities.Whiteboard{analyzedWhiteboard(t, project, boardTwo, fixedNow)}, nil)
	f.usage.On("Consume", mock.Anything, "acc-1", valueobjects.UsageExport, fixedNow).
		Return(ledger.Denied(pkgerrors.ReasonUsageLimitExceeded), nil)
	f.accounts.On("GetByID", mock.Anything, "acc-1").Return(freeAccount(t, "acc-1", 10), nil)

	_, err := f.export.Generate(context.Background(), "acc-1", services.GenerateInput{ProjectID: project.ID, Format: "mindmap"})

	assert.True(t, pkgerrors.IsAuthorizationDenied(err))
	f.exports.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExportService_Generate_StorageFailureEndsInError(t *testing.T) {
	f := newFixture(t)
	project := ownedProjectFixture(t, "acc-1", "P")
	f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	f.whiteboards.On("ListByProject", mock.Anything, project.ID).
		Return([]*entities.Whiteboard{analyzedWhiteboard(t, project, boardOne, fixedNow)}, nil)
	f.usage.On("Consume", mock.Anything, "acc-1", valueobjects.UsageExport, fixedNow).
		Return(ledger.Allowed(ledger.BasisSubscription), nil)
	f.exports.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(pkgerrors.NewStorageError("put", errors.New("disk full")))
	f.exports.On("Update", mock.Anything, mock.MatchedBy(func(e *entities.Export) bool {
		return e.Status == valueobjects.ExportError && e.ErrorMessage != ""
	})).Return(nil).Once()

	export, err := f.export.Generate(context.Background(), "acc-1", services.GenerateInput{ProjectID: project.ID, Format: "confluence"})

	require.Error(t, err)
	require.NotNil(t, export)
	assert.Equal(t, valueobjects.ExportError, export.Status)
	assert.NotNil(t, export.CompletedAt)
	assert.Equal(t, []valueobjects.ExportStatus{valueobjects.ExportError}, f.metrics.Exports)
	f.assertExpectations(t)
}

func TestExportService_Generate_LostCompletionRemovesArtifact(t *testing.T) {
	f := newFixture(t)
	project := ownedProjectFixture(t, "acc-1", "P")
	f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	f.whiteboards.On("ListByProject", mock.Anything, project.ID).
		Return([]*entities.Whiteboard{analyzedWhiteboard(t, project, boardOne, fixedNow)}, nil)
	f.usage.On("Consume", mock.Anything, "acc-1", valueobjects.UsageExport, fixedNow).
		Return(ledger.Allowed(ledger.BasisFreeQuota), nil)
	f.exports.On("Create", mock.Anything, mock.Anything).Return(nil)
	var key string
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { key = args.String(1) }).
		Return(nil)
	f.exports.On("Update", mock.Anything, mock.MatchedBy(func(e *entities.Export) bool {
		return e.Status == valueobjects.ExportCompleted
	})).Return(pkgerrors.NewDatabaseError("update export", errors.New("database is locked"))).Once()
	f.store.On("Delete", mock.Anything, mock.MatchedBy(func(k string) bool { return k != "" && k == key })).Return(nil).Once()
	f.exports.On("Update", mock.Anything, mock.MatchedBy(func(e *entities.Export) bool {
		return e.Status == valueobjects.ExportError && e.FilePath == ""
	})).Return(nil).Once()

	export, err := f.export.Generate(context.Background(), "acc-1", services.GenerateInput{ProjectID: project.ID, Format: "markdown"})

	require.Error(t, err)
	assert.Equal(t, valueobjects.ExportError, export.Status)
	assert.False(t, export.Downloadable())
	assert.Equal(t, []valueobjects.ExportStatus{valueobjects.ExportError}, f.metrics.Exports)
	f.assertExpectations(t)
}

func TestExportService_Generate_PPTXWithImages(t *testing.T) {
	f := newFixture(t)
	project := ownedProjectFixture(t, "acc-1", "Deck")
	wb := analyzedWhiteboard(t, project, boardOne, fixedNow)
	f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	f.whiteboards.On("ListByProject", mock.Anything, project.ID).Return([]*entities.Whiteboard{wb}, nil)
	f.store.On("Get", mock.Anything, wb.ImagePath).Return([]byte("\x89PNG\r\n\x1a\nfake"), nil)
	f.usage.On("Consume", mock.Anything, "acc-1", valueobjects.UsageExport, fixedNow).
		Return(ledger.Allowed(ledger.BasisFreeQuota), nil)
	f.exports.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool { return strings.HasSuffix(key, ".pptx") }),
		mock.Anything, mock.Anything).Return(nil)
	f.exports.On("Update", mock.Anything, mock.Anything).Return(nil)

	export, err := f.export.Generate(context.Background(), "acc-1", services.GenerateInput{
		ProjectID: project.ID,
		Format:    "pptx",
		Options:   json.RawMessage(`{"include_images":true}`),
	})

	require.NoError(t, err)
	assert.Equal(t, valueobjects.FormatPPTX, export.Format)
	assert.Equal(t, valueobjects.PPTXOptions{IncludeImages: true}, export.Options)
	f.assertExpectations(t)
}

func TestExportService_Generate_PPTXSkipsWebPWithoutFetching(t *testing.T) {
	f := newFixture(t)
	project := ownedProjectFixture(t, "acc-1", "Deck")
	wb := analyzedWhiteboard(t, project, boardOne, fixedNow)
	wb.MimeType = "image/webp"
	f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	f.whiteboards.On("ListByProject", mock.Anything, project.ID).Return([]*entities.Whiteboard{wb}, nil)
	f.usage.On("Consume", mock.Anything, "acc-1", valueobjects.UsageExport, fixedNow).
		Return(ledger.Allowed(ledger.BasisFreeQuota), nil)
	f.exports.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.exports.On("Update", mock.Anything, mock.Anything).Return(nil)

	_, err := f.export.Generate(context.Background(), "acc-1", services.GenerateInput{
		ProjectID: project.ID,
		Format:    "pptx",
		Options:   json.RawMessage(`{"include_images":true}`),
	})

	require.NoError(t, err)
	f.store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestExportService_Download(t *testing.T) {
	f := newFixture(t)
	project := ownedProjectFixture(t, "acc-1", "P")
	ready, err := entities.NewExport(project, valueobjects.DefaultExportOptions(valueobjects.FormatMarkdown), fixedNow)
	require.NoError(t, err)
	ready.Complete("exports/x/P.md", 5, fixedNow)
	pending, err := entities.NewExport(project, valueobjects.DefaultExportOptions(valueobjects.FormatMarkdown), fixedNow)
	require.NoError(t, err)

	f.exports.On("GetByID", mock.Anything, ready.ID).Return(ready, nil)
	f.exports.On("GetByID", mock.Anything, pending.ID).Return(pending, nil)
	f.store.On("Get", mock.Anything, "exports/x/P.md").Return([]byte("# P\n"), nil)
	f.exports.On("RecordDownload", mock.Anything, ready.ID, fixedNow).Return(nil)

	dl, err := f.export.Download(context.Background(), "acc-1", ready.ID)
	require.NoError(t, err)
	assert.Equal(t, "# P\n", string(dl.Data))
	assert.Equal(t, 1, dl.Export.DownloadCount)
	assert.Equal(t, "text/markdown; charset=utf-8", dl.ContentType)

	_, err = f.export.Download(context.Background(), "acc-1", pending.ID)
	assert.True(t, pkgerrors.IsConflict(err))

	_, err = f.export.Download(context.Background(), "someone-else", ready.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestExportService_Purge(t *testing.T) {
	f := newFixture(t)
	project := ownedProjectFixture(t, "acc-1", "P")
	old, err := entities.NewExport(project, valueobjects.DefaultExportOptions(valueobjects.FormatMindmap), fixedNow.AddDate(0, 0, -40))
	require.NoError(t, err)
	old.Complete("exports/old/P.json", 3, old.CreatedAt)
	failed, err := entities.NewExport(project, valueobjects.DefaultExportOptions(valueobjects.FormatMindmap), fixedNow.AddDate(0, 0, -35))
	require.NoError(t, err)
	failed.Fail("boom", failed.CreatedAt)

	cutoff := fixedNow.Add(-30 * 24 * time.Hour)
	f.exports.On("ListCreatedBefore", mock.Anything, cutoff, 100).Return([]*entities.Export{old, failed}, nil).Once()
	f.store.On("Delete", mock.Anything, "exports/old/P.json").Return(nil)
	f.exports.On("Delete", mock.Anything, old.ID).Return(nil)
	f.exports.On("Delete", mock.Anything, failed.ID).Return(nil)

	removed, err := f.export.Purge(context.Background(), 30*24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	f.assertExpectations(t)
}
