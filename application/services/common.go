// Package services implements the application use cases on top of the ports.
package services

import (
	"context"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/events"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// Clock returns the current time. Services read it once per operation.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// publishEvent sends ev and only logs a failure; events never fail the
// operation that raised them.
func publishEvent(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, ev events.DomainEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, ev); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("eventType", ev.GetEventType()),
			zap.String("aggregateID", ev.GetAggregateID()),
			zap.Error(err),
		)
	}
}

// ownedProject loads a project and hides it from anyone but its owner.
func ownedProject(ctx context.Context, repo ports.ProjectRepository, ownerID, projectID string) (*entities.Project, error) {
	project, err := repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsOwnedBy(ownerID) {
		return nil, pkgerrors.NewNotFoundError("project")
	}
	return project, nil
}
