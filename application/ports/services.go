package ports

import (
	"context"
	"time"

	"scribe/domain/core/valueobjects"
	"scribe/domain/events"
	"scribe/domain/ledger"
)

// ObjectStore holds uploaded images and export artifacts under opaque keys.
type ObjectStore interface {
	// Put stores data under key, replacing any previous object
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get reads the object at key; a missing key is a not-found error
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object at key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// AnalysisRequest is one whiteboard photo sent for structuring.
type AnalysisRequest struct {
	Image    []byte
	MimeType string
	// APIKey overrides the service key when the account brings its own.
	APIKey   string
	Language string
}

// AnalysisReply is the reassembled text the vendor streamed back.
type AnalysisReply struct {
	Text  string
	Model string
}

// AnalysisProvider sends an image and the structuring prompt to the vision API.
type AnalysisProvider interface {
	// Analyze blocks until the vendor's stream has been reassembled
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisReply, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics records business measurements.
type Metrics interface {
	// RecordConsume counts a ledger decision for kind
	RecordConsume(kind valueobjects.UsageKind, decision ledger.Decision)

	// RecordAnalysis observes one analysis run
	RecordAnalysis(status string, took time.Duration)

	// RecordExport observes one export generation
	RecordExport(format valueobjects.ExportFormat, status valueobjects.ExportStatus, took time.Duration)
}
