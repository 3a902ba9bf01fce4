package dynamodb

import (
	"context"
	"fmt"
	"sort"
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

// AccountRepository implements ports.AccountRepository using DynamoDB
type AccountRepository struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(client Client, tableName string, logger *zap.Logger) *AccountRepository {
	return &AccountRepository{client: client, tableName: tableName, logger: logger}
}

// Create writes the account and its email reservation in one transaction.
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	item, err := attributevalue.MarshalMap(toAccountItem(account))
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	lock, err := attributevalue.MarshalMap(emailLockItem{
		PK:         emailPK(account.Email),
		SK:         skLock,
		EntityType: entityEmailLock,
		AccountID:  account.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email lock: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                lock,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
		},
	})
	if err != nil {
		if isTransactionConflict(err) {
			return pkgerrors.NewConflictError("email is already registered").WithCode("email_taken")
		}
		r.logger.Error("Failed to create account", zap.String("accountID", account.ID), zap.Error(err))
		return dbError("create account", err)
	}

	r.logger.Debug("Account created", zap.String("accountID", account.ID))
	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entities.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(accountPK(id), skProfile),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, dbError("get account", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("account")
	}

	var item accountItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return item.toEntity(), nil
}

// GetByEmail resolves the email reservation and loads its account.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entities.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(emailPK(strings.ToLower(email)), skLock),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, dbError("get account by email", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("account")
	}

	var lock emailLockItem
	if err := attributevalue.UnmarshalMap(out.Item, &lock); err != nil {
		return nil, fmt.Errorf("failed to unmarshal email lock: %w", err)
	}
	return r.GetByID(ctx, lock.AccountID)
}

// UsernameTaken scans for an account with the given username. Registration
// is the only caller, so a scan is acceptable here.
func (r *AccountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityAccount)).
		And(expression.Name("Username").Equal(expression.Value(username)))
	expr, err := expression.NewBuilder().
		WithFilter(filter).
		WithProjection(expression.NamesList(expression.Name("PK"))).
		Build()
	if err != nil {
		return false, fmt.Errorf("failed to build username filter: %w", err)
	}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, dbError("check username", err)
		}
		if len(page.Items) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Update writes profile and subscription fields. The usage counters belong
// to the ledger and are left untouched.
func (r *AccountRepository) Update(ctx context.Context, account *entities.Account) error {
	update := expression.Set(expression.Name("Username"), expression.Value(account.Username)).
		Set(expression.Name("PasswordHash"), expression.Value(account.PasswordHash)).
		Set(expression.Name("DisplayName"), expression.Value(account.DisplayName)).
		Set(expression.Name("PreferredLanguage"), expression.Value(account.PreferredLanguage)).
		Set(expression.Name("Theme"), expression.Value(account.Theme)).
		Set(expression.Name("IsAdmin"), expression.Value(account.IsAdmin)).
		Set(expression.Name("SubscriptionType"), expression.Value(string(account.SubscriptionType))).
		Set(expression.Name("PaymentStatus"), expression.Value(string(account.PaymentStatus))).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(account.UpdatedAt)))

	optional := []struct {
		name  string
		value string
	}{
		{"SubscriptionExpiresAt", formatTimePtr(account.SubscriptionExpiresAt)},
		{"RequestedPlan", string(account.RequestedPlan)},
		{"CustomAPIKey", strings.TrimSpace(account.CustomAPIKey)},
		{"LastLogin", formatTimePtr(account.LastLogin)},
	}
	for _, f := range optional {
		if f.value == "" {
			update = update.Remove(expression.Name(f.name))
		} else {
			update = update.Set(expression.Name(f.name), expression.Value(f.value))
		}
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build account update: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key(accountPK(account.ID), skProfile),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewNotFoundError("account")
		}
		r.logger.Error("Failed to update account", zap.String("accountID", account.ID), zap.Error(err))
		return dbError("update account", err)
	}
	return nil
}

// List scans every account, then filters, orders and pages in memory.
func (r *AccountRepository) List(ctx context.Context, opts ports.ListOptions) ([]*entities.Account, int, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityAccount))).
		Build()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build account filter: %w", err)
	}

	raw, err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, 0, dbError("list accounts", err)
	}

	var items []accountItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal accounts: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	accounts := make([]*entities.Account, 0, len(items))
	for _, item := range items {
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Email), query) &&
			!strings.Contains(strings.ToLower(item.Username), query) {
			continue
		}
		accounts = append(accounts, item.toEntity())
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID > accounts[j].ID
		}
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return page(accounts, opts.Offset, opts.Limit), len(accounts), nil
}

// Delete removes the account and releases its email.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	account, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       key(accountPK(id), skProfile),
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       key(emailPK(account.Email), skLock),
			}},
		},
	})
	if err != nil {
		r.logger.Error("Failed to delete account", zap.String("accountID", id), zap.Error(err))
		return dbError("delete account", err)
	}
	return nil
}
