// Package mocks provides testify mocks of the application ports.
package mocks

import (
	"context"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"

	"github.com/stretchr/testify/mock"
)

var (
	_ ports.AccountRepository    = (*MockAccountRepository)(nil)
	_ ports.UsageLedger          = (*MockLedger)(nil)
	_ ports.ProjectRepository    = (*MockProjectRepository)(nil)
	_ ports.WhiteboardRepository = (*MockWhiteboardRepository)(nil)
	_ ports.ExportRepository     = (*MockExportRepository)(nil)
)

// MockAccountRepository mocks ports.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *entities.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*entities.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*entities.Account)
	return a, args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*entities.Account, error) {
	args := m.Called(ctx, email)
	a, _ := args.Get(0).(*entities.Account)
	return a, args.Error(1)
}

func (m *MockAccountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, account *entities.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) List(ctx context.Context, opts ports.ListOptions) ([]*entities.Account, int, error) {
	args := m.Called(ctx, opts)
	list, _ := args.Get(0).([]*entities.Account)
	return list, args.Int(1), args.Error(2)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockLedger mocks ports.UsageLedger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Consume(ctx context.Context, accountID string, kind valueobjects.UsageKind, now time.Time) (ledger.Decision, error) {
	args := m.Called(ctx, accountID, kind, now)
	d, _ := args.Get(0).(ledger.Decision)
	return d, args.Error(1)
}

func (m *MockLedger) Record(ctx context.Context, accountID string, kind valueobjects.UsageKind, now time.Time) error {
	return m.Called(ctx, accountID, kind, now).Error(0)
}

// MockProjectRepository mocks ports.ProjectRepository.
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, project *entities.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*entities.Project)
	return p, args.Error(1)
}

func (m *MockProjectRepository) GetByShareToken(ctx context.Context, token string) (*entities.Project, error) {
	args := m.Called(ctx, token)
	p, _ := args.Get(0).(*entities.Project)
	return p, args.Error(1)
}

func (m *MockProjectRepository) ListByOwner(ctx context.Context, ownerID string, opts ports.ListOptions) ([]*entities.Project, int, error) {
	args := m.Called(ctx, ownerID, opts)
	list, _ := args.Get(0).([]*entities.Project)
	return list, args.Int(1), args.Error(2)
}

func (m *MockProjectRepository) Update(ctx context.Context, project *entities.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *MockProjectRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProjectRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockWhiteboardRepository mocks ports.WhiteboardRepository.
type MockWhiteboardRepository struct {
	mock.Mock
}

func (m *MockWhiteboardRepository) Create(ctx context.Context, wb *entities.Whiteboard) error {
	return m.Called(ctx, wb).Error(0)
}

func (m *MockWhiteboardRepository) GetByID(ctx context.Context, id string) (*entities.Whiteboard, error) {
	args := m.Called(ctx, id)
	wb, _ := args.Get(0).(*entities.Whiteboard)
	return wb, args.Error(1)
}

func (m *MockWhiteboardRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.Whiteboard, error) {
	args := m.Called(ctx, projectID)
	list, _ := args.Get(0).([]*entities.Whiteboard)
	return list, args.Error(1)
}

func (m *MockWhiteboardRepository) Update(ctx context.Context, wb *entities.Whiteboard) error {
	return m.Called(ctx, wb).Error(0)
}

func (m *MockWhiteboardRepository) BeginProcessing(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	args := m.Called(ctx, id, now, staleBefore)
	return args.Bool(0), args.Error(1)
}

func (m *MockWhiteboardRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockWhiteboardRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockExportRepository mocks ports.ExportRepository.
type MockExportRepository struct {
	mock.Mock
}

func (m *MockExportRepository) Create(ctx context.Context, export *entities.Export) error {
	return m.Called(ctx, export).Error(0)
}

func (m *MockExportRepository) GetByID(ctx context.Context, id string) (*entities.Export, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*entities.Export)
	return e, args.Error(1)
}

func (m *MockExportRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.Export, error) {
	args := m.Called(ctx, projectID)
	list, _ := args.Get(0).([]*entities.Export)
	return list, args.Error(1)
}

func (m *MockExportRepository) Update(ctx context.Context, export *entities.Export) error {
	return m.Called(ctx, export).Error(0)
}

func (m *MockExportRepository) RecordDownload(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockExportRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Export, error) {
	args := m.Called(ctx, cutoff, limit)
	list, _ := args.Get(0).([]*entities.Export)
	return list, args.Error(1)
}

func (m *MockExportRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockExportRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockExportRepository) CountByFormat(ctx context.Context) (map[valueobjects.ExportFormat]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[valueobjects.ExportFormat]int)
	return counts, args.Error(1)
}
