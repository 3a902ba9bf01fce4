package dynamodb

import (
	"context"
	"fmt"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"
	pkgerrors "scribe/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// UsageLedger applies the usage rules as conditional updates on the account
// item, so concurrent requests can never push the free counter past the limit.
type UsageLedger struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

var _ ports.UsageLedger = (*UsageLedger)(nil)

// NewUsageLedger creates a new UsageLedger
func NewUsageLedger(client Client, tableName string, logger *zap.Logger) *UsageLedger {
	return &UsageLedger{client: client, tableName: tableName, logger: logger}
}

func counterFor(kind valueobjects.UsageKind) string {
	switch kind {
	case valueobjects.UsageImage:
		return "ImagesProcessed"
	case valueobjects.UsageExport:
		return "ExportsGenerated"
	default:
		return "ProjectsCreated"
	}
}

// coveredCondition holds when the account has its own key or a paid plan
// that has not yet expired at now.
func coveredCondition(now time.Time) expression.ConditionBuilder {
	hasKey := expression.Name("CustomAPIKey").Size().GreaterThan(expression.Value(0))
	activePlan := expression.Name("SubscriptionType").NotEqual(expression.Value(string(valueobjects.SubscriptionFree))).
		And(expression.Name("SubscriptionExpiresAt").GreaterThan(expression.Value(formatTime(now))))
	return hasKey.Or(activePlan)
}

// Consume tries the covered path first and falls back to the free quota.
// The free path re-checks that the account is still not covered, so a plan
// activated between the two writes is never charged a free use.
func (l *UsageLedger) Consume(ctx context.Context, accountID string, kind valueobjects.UsageKind, now time.Time) (ledger.Decision, error) {
	if !kind.Metered() {
		return ledger.Decision{}, pkgerrors.NewValidationError(fmt.Sprintf("usage kind %q is not metered", kind))
	}
	counter := counterFor(kind)
	exists := expression.AttributeExists(expression.Name("PK"))
	// UpdateBuilder shares its operation map between copies; build a fresh
	// one per request.
	stamp := func() expression.UpdateBuilder {
		return expression.Set(expression.Name("UpdatedAt"), expression.Value(formatTime(now)))
	}
	covered := coveredCondition(now)

	out, err := l.update(ctx, accountID,
		stamp().Add(expression.Name(counter), expression.Value(1)),
		exists.And(covered),
		types.ReturnValueAllNew)
	if err == nil {
		basis := ledger.BasisSubscription
		if v, ok := out.Attributes["CustomAPIKey"].(*types.AttributeValueMemberS); ok && v.Value != "" {
			basis = ledger.BasisCustomKey
		}
		return ledger.Allowed(basis), nil
	}
	if !isConditionFailed(err) {
		return ledger.Decision{}, l.failed(accountID, kind, err)
	}

	_, err = l.update(ctx, accountID,
		stamp().Add(expression.Name(counter), expression.Value(1)).
			Add(expression.Name("FreeUsesCount"), expression.Value(1)),
		exists.And(
			expression.Not(covered),
			expression.Name("FreeUsesCount").LessThan(expression.Value(valueobjects.FreeUseLimit)),
		),
		types.ReturnValueNone)
	if err == nil {
		return ledger.Allowed(ledger.BasisFreeQuota), nil
	}
	if !isConditionFailed(err) {
		return ledger.Decision{}, l.failed(accountID, kind, err)
	}

	found, err := l.exists(ctx, accountID)
	if err != nil {
		return ledger.Decision{}, l.failed(accountID, kind, err)
	}
	if !found {
		return ledger.Decision{}, pkgerrors.NewNotFoundError("account")
	}
	return ledger.Denied(pkgerrors.ReasonUsageLimitExceeded), nil
}

// Record increments the counter of an unmetered kind.
func (l *UsageLedger) Record(ctx context.Context, accountID string, kind valueobjects.UsageKind, now time.Time) error {
	if kind.Metered() {
		return pkgerrors.NewValidationError(fmt.Sprintf("usage kind %q is metered", kind))
	}
	_, err := l.update(ctx, accountID,
		expression.Set(expression.Name("UpdatedAt"), expression.Value(formatTime(now))).
			Add(expression.Name(counterFor(kind)), expression.Value(1)),
		expression.AttributeExists(expression.Name("PK")),
		types.ReturnValueNone)
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewNotFoundError("account")
		}
		return l.failed(accountID, kind, err)
	}
	return nil
}

func (l *UsageLedger) update(ctx context.Context, accountID string, update expression.UpdateBuilder, cond expression.ConditionBuilder, ret types.ReturnValue) (*dynamodb.UpdateItemOutput, error) {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger update: %w", err)
	}
	return l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(l.tableName),
		Key:                       key(accountPK(accountID), skProfile),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              ret,
	})
}

func (l *UsageLedger) exists(ctx context.Context, accountID string) (bool, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(l.tableName),
		Key:                  key(accountPK(accountID), skProfile),
		ProjectionExpression: aws.String("PK"),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	return len(out.Item) > 0, nil
}

func (l *UsageLedger) failed(accountID string, kind valueobjects.UsageKind, err error) error {
	l.logger.Error("Usage ledger update failed",
		zap.String("accountID", accountID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return dbError("consume usage", err)
}
