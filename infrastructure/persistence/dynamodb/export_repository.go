package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ExportRepository implements ports.ExportRepository using DynamoDB
type ExportRepository struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

var _ ports.ExportRepository = (*ExportRepository)(nil)

// NewExportRepository creates a new ExportRepository
func NewExportRepository(client Client, tableName string, logger *zap.Logger) *ExportRepository {
	return &ExportRepository{client: client, tableName: tableName, logger: logger}
}

// Create persists a new export
func (r *ExportRepository) Create(ctx context.Context, export *entities.Export) error {
	return r.put(ctx, export, "attribute_not_exists(PK)", "create export")
}

// Update overwrites an export
func (r *ExportRepository) Update(ctx context.Context, export *entities.Export) error {
	return r.put(ctx, export, "attribute_exists(PK)", "update export")
}

func (r *ExportRepository) put(ctx context.Context, export *entities.Export, condition, operation string) error {
	record, err := toExportItem(export)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewNotFoundError("export")
		}
		r.logger.Error("Failed to write export",
			zap.String("operation", operation),
			zap.String("exportID", export.ID),
			zap.Error(err),
		)
		return dbError(operation, err)
	}
	return nil
}

// GetByID retrieves an export by its ID
func (r *ExportRepository) GetByID(ctx context.Context, id string) (*entities.Export, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       key(exportPK(id), skMetadata),
	})
	if err != nil {
		return nil, dbError("get export", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("export")
	}

	var item exportItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export: %w", err)
	}
	return item.toEntity()
}

// ListByProject returns the project's exports newest first.
func (r *ExportRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.Export, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("GSI1SK").BeginsWith("EXPORT#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build export query: %w", err)
	}

	raw, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, dbError("list exports", err)
	}
	return r.decode(raw)
}

// RecordDownload bumps the counter in place.
func (r *ExportRepository) RecordDownload(ctx context.Context, id string, at time.Time) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("DownloadCount"), expression.Value(1)).
			Set(expression.Name("LastDownloaded"), expression.Value(formatTime(at)))).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build download update: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key(exportPK(id), skMetadata),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewNotFoundError("export")
		}
		return dbError("record download", err)
	}
	return nil
}

// ListCreatedBefore scans for exports older than cutoff and returns the
// oldest limit of them.
func (r *ExportRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Export, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityExport)).
		And(expression.Name("CreatedAt").LessThan(expression.Value(formatTime(cutoff))))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build export filter: %w", err)
	}

	raw, err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, dbError("list expired exports", err)
	}

	exports, err := r.decode(raw)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(exports, func(i, j int) bool {
		return exports[i].CreatedAt.Before(exports[j].CreatedAt)
	})
	if limit > 0 && len(exports) > limit {
		exports = exports[:limit]
	}
	return exports, nil
}

// Delete removes an export record
func (r *ExportRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 key(exportPK(id), skMetadata),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewNotFoundError("export")
		}
		return dbError("delete export", err)
	}
	return nil
}

// CountByOwner counts the owner's exports on GSI2
func (r *ExportRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	n, err := countIndex(ctx, r.client, r.tableName, gsi2, "GSI2PK", ownerKey(ownerID), "GSI2SK", "EXPORT#")
	if err != nil {
		return 0, dbError("count exports", err)
	}
	return n, nil
}

// CountByFormat scans the Format attribute of every export.
func (r *ExportRepository) CountByFormat(ctx context.Context) (map[valueobjects.ExportFormat]int, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityExport))).
		WithProjection(expression.NamesList(expression.Name("Format"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build export filter: %w", err)
	}

	raw, err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, dbError("count exports by format", err)
	}

	var rows []struct {
		Format string `dynamodbav:"Format"`
	}
	if err := attributevalue.UnmarshalListOfMaps(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export formats: %w", err)
	}
	counts := make(map[valueobjects.ExportFormat]int)
	for _, row := range rows {
		counts[valueobjects.ExportFormat(row.Format)]++
	}
	return counts, nil
}

func (r *ExportRepository) decode(raw []map[string]types.AttributeValue) ([]*entities.Export, error) {
	var items []exportItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exports: %w", err)
	}
	exports := make([]*entities.Export, 0, len(items))
	for _, item := range items {
		e, err := item.toEntity()
		if err != nil {
			r.logger.Warn("Skipping unreadable export", zap.String("exportID", item.ExportID), zap.Error(err))
			continue
		}
		exports = append(exports, e)
	}
	return exports, nil
}
