package mocks

import (
	"context"
	"sync"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/valueobjects"
	"scribe/domain/events"
	"scribe/domain/ledger"

	"github.com/stretchr/testify/mock"
)

var (
	_ ports.ObjectStore      = (*MockObjectStore)(nil)
	_ ports.AnalysisProvider = (*MockAnalysisProvider)(nil)
	_ ports.EventPublisher   = (*MockEventPublisher)(nil)
	_ ports.Metrics          = (*RecordingMetrics)(nil)
)

// MockObjectStore mocks ports.ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

func (m *MockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// MockAnalysisProvider mocks ports.AnalysisProvider.
type MockAnalysisProvider struct {
	mock.Mock
}

func (m *MockAnalysisProvider) Analyze(ctx context.Context, req ports.AnalysisRequest) (*ports.AnalysisReply, error) {
	args := m.Called(ctx, req)
	reply, _ := args.Get(0).(*ports.AnalysisReply)
	return reply, args.Error(1)
}

// MockEventPublisher mocks ports.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evs []events.DomainEvent) error {
	return m.Called(ctx, evs).Error(0)
}

// RecordingMetrics keeps every observation for later assertions.
type RecordingMetrics struct {
	mu       sync.Mutex
	Consumes []ledger.Decision
	Analyses []string
	Exports  []valueobjects.ExportStatus
}

func (r *RecordingMetrics) RecordConsume(_ valueobjects.UsageKind, d ledger.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Consumes = append(r.Consumes, d)
}

func (r *RecordingMetrics) RecordAnalysis(status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Analyses = append(r.Analyses, status)
}

func (r *RecordingMetrics) RecordExport(_ valueobjects.ExportFormat, status valueobjects.ExportStatus, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Exports = append(r.Exports, status)
}
