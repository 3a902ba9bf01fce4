package services_test

import (
	"context"
	"testing"

	"scribe/application/ports"
	"scribe/application/services"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProjectService_Create_RecordsUse(t *testing.T) {
	f := newFixture(t)
	f.projects.On("Create", mock.Anything, mock.AnythingOfType("*entities.Project")).Return(nil)
	f.usage.On("Record", mock.Anything, "acc-1", valueobjects.UsageProject, fixedNow).Return(nil)

	p, err := f.project.Create(context.Background(), "acc-1", " Retro ", "")

	require.NoError(t, err)
	assert.Equal(t, "Retro", p.Title)
	f.assertExpectations(t)
}

func TestProjectService_List_WithCounts(t *testing.T) {
	f := newFixture(t)
	p := ownedProjectFixture(t, "acc-1", "Retro")
	opts := ports.ListOptions{Limit: 20, Query: "ret"}
	f.projects.On("ListByOwner", mock.Anything, "acc-1", opts).Return([]*entities.Project{p}, 1, nil)
	f.whiteboards.On("ListByProject", mock.Anything, p.ID).Return([]*entities.Whiteboard{
		analyzedWhiteboard(t, p, "", fixedNow), analyzedWhiteboard(t, p, "", fixedNow),
	}, nil)
	f.exports.On("ListByProject", mock.Anything, p.ID).Return([]*entities.Export{}, nil)

	list, total, err := f.project.List(context.Background(), "acc-1", opts)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].WhiteboardCount)
	assert.Equal(t, 0, list[0].ExportCount)
}

func TestProjectService_Update(t *testing.T) {
	f := newFixture(t)
	p := ownedProjectFixture(t, "acc-1", "Old")
	f.projects.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	f.projects.On("Update", mock.Anything, p).Return(nil)

	title, status, bad := "New", "completed", "archived"
	got, err := f.project.Update(context.Background(), "acc-1", p.ID, services.ProjectUpdate{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, entities.ProjectCompleted, got.Status)

	_, err = f.project.Update(context.Background(), "acc-1", p.ID, services.ProjectUpdate{Status: &bad})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.project.Update(context.Background(), "acc-2", p.ID, services.ProjectUpdate{Title: &title})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestProjectService_ShareAndUnshare(t *testing.T) {
	f := newFixture(t)
	p := ownedProjectFixture(t, "acc-1", "Shared")
	f.projects.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	f.projects.On("Update", mock.Anything, p).Return(nil)

	shared, err := f.project.Share(context.Background(), "acc-1", p.ID)
	require.NoError(t, err)
	token := shared.ShareToken
	require.NotEmpty(t, token)

	f.projects.On("GetByShareToken", mock.Anything, token).Return(p, nil)
	f.whiteboards.On("ListByProject", mock.Anything, p.ID).Return([]*entities.Whiteboard{}, nil)
	detail, err := f.project.GetShared(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, detail.Project.ID)

	rotated, err := f.project.Share(context.Background(), "acc-1", p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, rotated.ShareToken)

	unshared, err := f.project.Unshare(context.Background(), "acc-1", p.ID)
	require.NoError(t, err)
	assert.False(t, unshared.IsPublic())

	_, err = f.project.GetShared(context.Background(), "")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestProjectService_Delete_RemovesFiles(t *testing.T) {
	f := newFixture(t)
	p := ownedProjectFixture(t, "acc-1", "Gone")
	wb := analyzedWhiteboard(t, p, `{"title":"t"}`, fixedNow)
	export, err := entities.NewExport(p, valueobjects.DefaultExportOptions(valueobjects.FormatMarkdown), fixedNow)
	require.NoError(t, err)
	export.Complete("exports/e/Gone.md", 3, fixedNow)

	f.projects.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	f.whiteboards.On("ListByProject", mock.Anything, p.ID).Return([]*entities.Whiteboard{wb}, nil)
	f.exports.On("ListByProject", mock.Anything, p.ID).Return([]*entities.Export{export}, nil)
	f.projects.On("Delete", mock.Anything, p.ID).Return(nil)
	f.store.On("Delete", mock.Anything, wb.ImagePath).Return(nil)
	f.store.On("Delete", mock.Anything, "exports/e/Gone.md").Return(pkgerrors.NewStorageError("delete", assert.AnError))

	// A file that cannot be removed does not undo the deletion.
	require.NoError(t, f.project.Delete(context.Background(), "acc-1", p.ID))
	f.assertExpectations(t)
}
