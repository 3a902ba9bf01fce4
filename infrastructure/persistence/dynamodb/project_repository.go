package dynamodb

import (
	"context"
	"fmt"
	"strings"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	pkgerrors "scribe/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ProjectRepository implements ports.ProjectRepository using DynamoDB
type ProjectRepository struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

var _ ports.ProjectRepository = (*ProjectRepository)(nil)

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(client Client, tableName string, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{client: client, tableName: tableName, logger: logger}
}

// Create persists a new project
func (r *ProjectRepository) Create(ctx context.Context, project *entities.Project) error {
	return r.put(ctx, project, "attribute_not_exists(PK)", "create project")
}

// Update overwrites a project. The owner index key moves with UpdatedAt.
func (r *ProjectRepository) Update(ctx context.Context, project *entities.Project) error {
	return r.put(ctx, project, "attribute_exists(PK)", "update project")
}

func (r *ProjectRepository) put(ctx context.Context, project *entities.Project, condition, operation string) error {
	item, err := attributevalue.MarshalMap(toProjectItem(project))
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	if err != nil {
		if isConditionFailed(err) {
			if operation == "create project" {
				return pkgerrors.NewConflictError("project already exists")
			}
			return pkgerrors.NewNotFoundError("project")
		}
		r.logger.Error("Failed to write project",
			zap.String("operation", operation),
			zap.String("projectID", project.ID),
			zap.Error(err),
		)
		return dbError(operation, err)
	}
	return nil
}

// GetByID retrieves a project by its ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       key(projectPK(id), skMetadata),
	})
	if err != nil {
		return nil, dbError("get project", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("project")
	}

	var item projectItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return item.toEntity(), nil
}

// GetByShareToken looks the token up on GSI2.
func (r *ProjectRepository) GetByShareToken(ctx context.Context, token string) (*entities.Project, error) {
	if token == "" {
		return nil, pkgerrors.NewNotFoundError("project")
	}
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI2PK").Equal(expression.Value(shareKey(token)))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build share query: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi2),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, dbError("get shared project", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("project")
	}

	var item projectItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return item.toEntity(), nil
}

// ListByOwner queries the owner's partition of GSI1 newest first and pages
// the title-filtered result.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string, opts ports.ListOptions) ([]*entities.Project, int, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(ownerKey(ownerID))).
		And(expression.Key("GSI1SK").BeginsWith("PROJECT#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build project query: %w", err)
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
		return nil, 0, dbError("list projects", err)
	}

	var items []projectItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal projects: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	projects := make([]*entities.Project, 0, len(items))
	for _, item := range items {
		if query != "" && !strings.Contains(strings.ToLower(item.Title), query) {
			continue
		}
		projects = append(projects, item.toEntity())
	}
	return page(projects, opts.Offset, opts.Limit), len(projects), nil
}

// Delete removes the project and every whiteboard and export indexed under it.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}

	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(projectPK(id)))).
		WithProjection(expression.NamesList(expression.Name("PK"), expression.Name("SK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build child query: %w", err)
	}
	children, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return dbError("list project children", err)
	}

	keys := make([]map[string]types.AttributeValue, 0, len(children)+1)
	for _, child := range children {
		keys = append(keys, map[string]types.AttributeValue{"PK": child["PK"], "SK": child["SK"]})
	}
	// The project goes last so a partial failure can be retried.
	keys = append(keys, key(projectPK(id), skMetadata))

	if err := deleteKeys(ctx, r.client, r.tableName, keys); err != nil {
		r.logger.Error("Failed to delete project", zap.String("projectID", id), zap.Error(err))
		return dbError("delete project", err)
	}

	r.logger.Info("Project deleted",
		zap.String("projectID", id),
		zap.Int("children", len(children)),
	)
	return nil
}

// Count returns the number of projects in the table
func (r *ProjectRepository) Count(ctx context.Context) (int, error) {
	n, err := countEntities(ctx, r.client, r.tableName, entityProject)
	if err != nil {
		return 0, dbError("count projects", err)
	}
	return n, nil
}
