package dynamodb

import (
	"context"
	"fmt"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	pkgerrors "scribe/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// WhiteboardRepository implements ports.WhiteboardRepository using DynamoDB
type WhiteboardRepository struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

var _ ports.WhiteboardRepository = (*WhiteboardRepository)(nil)

// NewWhiteboardRepository creates a new WhiteboardRepository
func NewWhiteboardRepository(client Client, tableName string, logger *zap.Logger) *WhiteboardRepository {
	return &WhiteboardRepository{client: client, tableName: tableName, logger: logger}
}

// Create persists a new whiteboard
func (r *WhiteboardRepository) Create(ctx context.Context, wb *entities.Whiteboard) error {
	return r.put(ctx, wb, "attribute_not_exists(PK)", "create whiteboard")
}

// Update overwrites a whiteboard
func (r *WhiteboardRepository) Update(ctx context.Context, wb *entities.Whiteboard) error {
	return r.put(ctx, wb, "attribute_exists(PK)", "update whiteboard")
}

func (r *WhiteboardRepository) put(ctx context.Context, wb *entities.Whiteboard, condition, operation string) error {
	item, err := attributevalue.MarshalMap(toWhiteboardItem(wb))
	if err != nil {
		return fmt.Errorf("failed to marshal whiteboard: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewNotFoundError("whiteboard")
		}
		r.logger.Error("Failed to write whiteboard",
			zap.String("operation", operation),
			zap.String("whiteboardID", wb.ID),
			zap.Error(err),
		)
		return dbError(operation, err)
	}
	return nil
}

// GetByID retrieves a whiteboard by its ID
func (r *WhiteboardRepository) GetByID(ctx context.Context, id string) (*entities.Whiteboard, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(whiteboardPK(id), skMetadata),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, dbError("get whiteboard", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("whiteboard")
	}

	var item whiteboardItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal whiteboard: %w", err)
	}
	return item.toEntity(), nil
}

// ListByProject returns the project's whiteboards oldest first.
func (r *WhiteboardRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.Whiteboard, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("GSI1SK").BeginsWith("WHITEBOARD#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build whiteboard query: %w", err)
	}

	raw, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	})
	if err != nil {
		return nil, dbError("list whiteboards", err)
	}

	var items []whiteboardItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal whiteboards: %w", err)
	}
	whiteboards := make([]*entities.Whiteboard, 0, len(items))
	for _, item := range items {
		whiteboards = append(whiteboards, item.toEntity())
	}
	return whiteboards, nil
}

// BeginProcessing claims the whiteboard with a conditional UpdateItem
func (r *WhiteboardRepository) BeginProcessing(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	status := expression.Name("ProcessingStatus")
	claimable := status.In(
		expression.Value(string(entities.WhiteboardUploaded)),
		expression.Value(string(entities.WhiteboardError)),
	).Or(status.Equal(expression.Value(string(entities.WhiteboardProcessing))).
		And(expression.Name("UpdatedAt").LessThan(expression.Value(formatTime(staleBefore)))))
	update := expression.Set(status, expression.Value(string(entities.WhiteboardProcessing))).
		Set(expression.Name("Progress"), expression.Value(0)).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(now))).
		Remove(expression.Name("ErrorMessage"))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK")).And(claimable)).
		Build()
	if err != nil {
		return false, fmt.Errorf("failed to build whiteboard claim: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key(whiteboardPK(id), skMetadata),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		r.logger.Error("Failed to claim whiteboard", zap.String("whiteboardID", id), zap.Error(err))
		return false, dbError("begin processing", err)
	}
	return true, nil
}

// CountByOwner counts the owner's whiteboards on GSI2
func (r *WhiteboardRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	n, err := countIndex(ctx, r.client, r.tableName, gsi2, "GSI2PK", ownerKey(ownerID), "GSI2SK", "WHITEBOARD#")
	if err != nil {
		return 0, dbError("count whiteboards", err)
	}
	return n, nil
}

// Count returns the number of whiteboards in the table
func (r *WhiteboardRepository) Count(ctx context.Context) (int, error) {
	n, err := countEntities(ctx, r.client, r.tableName, entityWhiteboard)
	if err != nil {
		return 0, dbError("count whiteboards", err)
	}
	return n, nil
}
