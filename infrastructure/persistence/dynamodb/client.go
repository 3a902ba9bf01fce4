// Package dynamodb stores accounts, projects, whiteboards and exports in a
// single DynamoDB table.
//
// Key layout:
//
//	ACCOUNT#<id>     PROFILE
//	EMAIL#<email>    LOCK                                        (unique email)
//	PROJECT#<id>     METADATA  GSI1 OWNER#<owner>/PROJECT#<updated>  GSI2 SHARE#<token>
//	WHITEBOARD#<id>  METADATA  GSI1 PROJECT#<pid>/WHITEBOARD#<created>#<id>  GSI2 OWNER#<owner>
//	EXPORT#<id>      METADATA  GSI1 PROJECT#<pid>/EXPORT#<created>#<id>      GSI2 OWNER#<owner>
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "scribe/pkg/errors"
	"scribe/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Client is the subset of the DynamoDB API the repositories use.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

const (
	gsi1 = "GSI1"
	gsi2 = "GSI2"

	entityAccount    = "ACCOUNT"
	entityEmailLock  = "EMAIL_LOCK"
	entityProject    = "PROJECT"
	entityWhiteboard = "WHITEBOARD"
	entityExport     = "EXPORT"

	skProfile  = "PROFILE"
	skLock     = "LOCK"
	skMetadata = "METADATA"

	// BatchWriteItem accepts at most 25 requests.
	batchWriteLimit = 25
)

func accountPK(id string) string    { return "ACCOUNT#" + id }
func emailPK(email string) string   { return "EMAIL#" + email }
func projectPK(id string) string    { return "PROJECT#" + id }
func whiteboardPK(id string) string { return "WHITEBOARD#" + id }
func exportPK(id string) string     { return "EXPORT#" + id }
func ownerKey(id string) string     { return "OWNER#" + id }
func shareKey(token string) string  { return "SHARE#" + token }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func formatTime(t time.Time) string {
	return utils.FormatSortable(t)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return utils.FormatSortable(*t)
}

func parseTime(s string) time.Time {
	t, err := utils.ParseSortable(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

// isTransactionConflict reports whether a transaction was cancelled because
// one of its condition checks failed.
func isTransactionConflict(err error) bool {
	var cancelled *types.TransactionCanceledException
	if !errors.As(err, &cancelled) {
		return false
	}
	for _, reason := range cancelled.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

// dbError maps an SDK failure onto an application error. Throttling is
// reported as unavailability so callers can retry.
func dbError(operation string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
			return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
		}
	}
	return pkgerrors.NewDatabaseError(operation, err)
}

// queryAll runs a query through every page.
func queryAll(ctx context.Context, client Client, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// scanAll runs a scan through every page.
func scanAll(ctx context.Context, client Client, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// countIndex counts items on an index partition whose sort key starts
// with prefix.
func countIndex(ctx context.Context, client Client, table, index, pkName, pk, skName, prefix string) (int, error) {
	cond := expression.Key(pkName).Equal(expression.Value(pk))
	if prefix != "" {
		cond = cond.And(expression.Key(skName).BeginsWith(prefix))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(cond).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build count expression: %w", err)
	}

	total := 0
	paginator := dynamodb.NewQueryPaginator(client, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}

// countEntities counts every item of entityType in the table.
func countEntities(ctx context.Context, client Client, table, entityType string) (int, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityType))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build count expression: %w", err)
	}

	total := 0
	paginator := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName:                 aws.String(table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}

// deleteKeys removes items in BatchWriteItem-sized chunks, retrying
// unprocessed requests.
func deleteKeys(ctx context.Context, client Client, table string, keys []map[string]types.AttributeValue) error {
	for start := 0; start < len(keys); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(keys) {
			end = len(keys)
		}
		requests := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}

		pending := map[string][]types.WriteRequest{table: requests}
		for attempt := 0; len(pending[table]) > 0; attempt++ {
			if attempt >= 5 {
				return fmt.Errorf("batch delete left %d unprocessed items", len(pending[table]))
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(50<<attempt) * time.Millisecond):
				}
			}
			out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// page applies offset and limit to an already ordered slice.
func page[T any](all []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
