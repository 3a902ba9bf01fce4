// Package events defines the domain events the service publishes.
package events

import (
	"time"

	"scribe/domain/core/valueobjects"
)

// SourceScribe is the event source name on the bus.
const SourceScribe = "scribe.api"

const (
	TypeWhiteboardAnalyzed  = "whiteboard.analyzed"
	TypeWhiteboardFailed    = "whiteboard.failed"
	TypeExportCompleted     = "export.completed"
	TypeExportFailed        = "export.failed"
	TypeSubscriptionChanged = "subscription.changed"
	TypeUpgradeRequested    = "subscription.upgrade_requested"
)

// DomainEvent is something that has already happened.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	AccountID   string    `json:"account_id"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func base(eventType, aggregateID, accountID string, at time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		AccountID:   accountID,
		Timestamp:   at,
		Version:     1,
	}
}

// WhiteboardAnalyzed is raised when analysis stores structured content.
type WhiteboardAnalyzed struct {
	BaseEvent
	ProjectID  string  `json:"project_id"`
	Confidence float64 `json:"confidence_score"`
}

func NewWhiteboardAnalyzed(whiteboardID, projectID, accountID string, confidence float64, at time.Time) WhiteboardAnalyzed {
	return WhiteboardAnalyzed{
		BaseEvent:  base(TypeWhiteboardAnalyzed, whiteboardID, accountID, at),
		ProjectID:  projectID,
		Confidence: confidence,
	}
}

// WhiteboardFailed is raised when analysis ends in error.
type WhiteboardFailed struct {
	BaseEvent
	ProjectID string `json:"project_id"`
	Message   string `json:"message"`
}

func NewWhiteboardFailed(whiteboardID, projectID, accountID, message string, at time.Time) WhiteboardFailed {
	return WhiteboardFailed{
		BaseEvent: base(TypeWhiteboardFailed, whiteboardID, accountID, at),
		ProjectID: projectID,
		Message:   message,
	}
}

// ExportFinished covers both the completed and the failed outcome.
type ExportFinished struct {
	BaseEvent
	ProjectID string                    `json:"project_id"`
	Format    valueobjects.ExportFormat `json:"format"`
	FileSize  int64                     `json:"file_size,omitempty"`
	Message   string                    `json:"message,omitempty"`
}

func NewExportCompleted(exportID, projectID, accountID string, format valueobjects.ExportFormat, size int64, at time.Time) ExportFinished {
	return ExportFinished{
		BaseEvent: base(TypeExportCompleted, exportID, accountID, at),
		ProjectID: projectID,
		Format:    format,
		FileSize:  size,
	}
}

func NewExportFailed(exportID, projectID, accountID string, format valueobjects.ExportFormat, message string, at time.Time) ExportFinished {
	return ExportFinished{
		BaseEvent: base(TypeExportFailed, exportID, accountID, at),
		ProjectID: projectID,
		Format:    format,
		Message:   message,
	}
}

// SubscriptionChanged is raised when an administrator edits a plan.
type SubscriptionChanged struct {
	BaseEvent
	SubscriptionType valueobjects.SubscriptionType `json:"subscription_type"`
	PaymentStatus    valueobjects.PaymentStatus    `json:"payment_status"`
	ExpiresAt        *time.Time                    `json:"expires_at,omitempty"`
	ChangedBy        string                        `json:"changed_by"`
}

func NewSubscriptionChanged(accountID, adminID string, t valueobjects.SubscriptionType, ps valueobjects.PaymentStatus, expires *time.Time, at time.Time) SubscriptionChanged {
	return SubscriptionChanged{
		BaseEvent:        base(TypeSubscriptionChanged, accountID, accountID, at),
		SubscriptionType: t,
		PaymentStatus:    ps,
		ExpiresAt:        expires,
		ChangedBy:        adminID,
	}
}

// UpgradeRequested is raised when an account asks for a paid plan.
type UpgradeRequested struct {
	BaseEvent
	Plan valueobjects.SubscriptionType `json:"plan"`
}

func NewUpgradeRequested(accountID string, plan valueobjects.SubscriptionType, at time.Time) UpgradeRequested {
	return UpgradeRequested{
		BaseEvent: base(TypeUpgradeRequested, accountID, accountID, at),
		Plan:      plan,
	}
}
