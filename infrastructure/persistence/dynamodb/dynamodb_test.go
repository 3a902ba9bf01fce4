package dynamodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"
	pkgerrors "scribe/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// fakeClient scripts the calls a test cares about; anything else panics
// through the nil embedded interface.
type fakeClient struct {
	Client

	updateResults []updateResult
	updates       []*dynamodb.UpdateItemInput

	item       map[string]types.AttributeValue
	queryItems []map[string]types.AttributeValue
	batches    [][]types.WriteRequest
}

type updateResult struct {
	out *dynamodb.UpdateItemOutput
	err error
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if len(f.updateResults) == 0 {
		return nil, fmt.Errorf("unexpected UpdateItem call")
	}
	next := f.updateResults[0]
	f.updateResults = f.updateResults[1:]
	if next.out == nil && next.err == nil {
		next.out = &dynamodb.UpdateItemOutput{}
	}
	return next.out, next.err
}

func (f *fakeClient) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeClient) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{Items: f.queryItems, Count: int32(len(f.queryItems))}, nil
}

func (f *fakeClient) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	for _, requests := range in.RequestItems {
		f.batches = append(f.batches, requests)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func attributeNames(in *dynamodb.UpdateItemInput) []string {
	names := make([]string, 0, len(in.ExpressionAttributeNames))
	for _, n := range in.ExpressionAttributeNames {
		names = append(names, n)
	}
	return names
}

func conditionFailed() updateResult {
	return updateResult{err: &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}}
}

func TestUsageLedger_Consume_CoveredByCustomKey(t *testing.T) {
	client := &fakeClient{updateResults: []updateResult{{out: &dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{
			"CustomAPIKey": &types.AttributeValueMemberS{Value: "sk-own"},
		},
	}}}}
	l := NewUsageLedger(client, "scribe", zap.NewNop())

	d, err := l.Consume(context.Background(), "acc-1", valueobjects.UsageImage, now)

	require.NoError(t, err)
	assert.Equal(t, ledger.Allowed(ledger.BasisCustomKey), d)
	require.Len(t, client.updates, 1)
	assert.Equal(t, types.ReturnValueAllNew, client.updates[0].ReturnValues)
	assert.Contains(t, aws.ToString(client.updates[0].UpdateExpression), "ADD")
}

func TestUsageLedger_Consume_CoveredBySubscription(t *testing.T) {
	client := &fakeClient{updateResults: []updateResult{{out: &dynamodb.UpdateItemOutput{}}}}
	l := NewUsageLedger(client, "scribe", zap.NewNop())

	d, err := l.Consume(context.Background(), "acc-1", valueobjects.UsageExport, now)

	require.NoError(t, err)
	assert.Equal(t, ledger.BasisSubscription, d.Basis)
}

func TestUsageLedger_Consume_FallsBackToFreeQuota(t *testing.T) {
	client := &fakeClient{updateResults: []updateResult{conditionFailed(), {}}}
	l := NewUsageLedger(client, "scribe", zap.NewNop())

	d, err := l.Consume(context.Background(), "acc-1", valueobjects.UsageImage, now)

	require.NoError(t, err)
	assert.Equal(t, ledger.Allowed(ledger.BasisFreeQuota), d)
	require.Len(t, client.updates, 2)
	free := client.updates[1]
	assert.Contains(t, aws.ToString(free.ConditionExpression), "NOT")
	assert.Contains(t, attributeNames(free), "FreeUsesCount")

	var limitSeen bool
	for _, v := range free.ExpressionAttributeValues {
		if n, ok := v.(*types.AttributeValueMemberN); ok && n.Value == "10" {
			limitSeen = true
		}
	}
	assert.True(t, limitSeen, "free path is conditioned on the free use limit")
}

func TestUsageLedger_Consume_Denied(t *testing.T) {
	client := &fakeClient{
		updateResults: []updateResult{conditionFailed(), conditionFailed()},
		item:          map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: accountPK("acc-1")}},
	}
	l := NewUsageLedger(client, "scribe", zap.NewNop())

	d, err := l.Consume(context.Background(), "acc-1", valueobjects.UsageImage, now)

	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, pkgerrors.ReasonUsageLimitExceeded, d.Reason)
}

func TestUsageLedger_Consume_UnknownAccount(t *testing.T) {
	client := &fakeClient{updateResults: []updateResult{conditionFailed(), conditionFailed()}}
	l := NewUsageLedger(client, "scribe", zap.NewNop())

	_, err := l.Consume(context.Background(), "ghost", valueobjects.UsageImage, now)

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUsageLedger_Consume_RejectsUnmeteredKind(t *testing.T) {
	client := &fakeClient{}
	l := NewUsageLedger(client, "scribe", zap.NewNop())

	_, err := l.Consume(context.Background(), "acc-1", valueobjects.UsageProject, now)

	assert.True(t, pkgerrors.IsValidation(err))
	assert.Empty(t, client.updates)
}

func TestUsageLedger_Consume_ThrottlingIsUnavailable(t *testing.T) {
	client := &fakeClient{updateResults: []updateResult{{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}}}}
	l := NewUsageLedger(client, "scribe", zap.NewNop())

	_, err := l.Consume(context.Background(), "acc-1", valueobjects.UsageImage, now)

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
}

func TestUsageLedger_Record(t *testing.T) {
	client := &fakeClient{updateResults: []updateResult{{}, conditionFailed()}}
	l := NewUsageLedger(client, "scribe", zap.NewNop())

	require.NoError(t, l.Record(context.Background(), "acc-1", valueobjects.UsageProject, now))
	assert.Contains(t, attributeNames(client.updates[0]), "ProjectsCreated")

	err := l.Record(context.Background(), "ghost", valueobjects.UsageProject, now)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = l.Record(context.Background(), "acc-1", valueobjects.UsageImage, now)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAccountItem_SubscriptionExpiryIsSortable(t *testing.T) {
	a, err := entities.NewAccount("ana@example.com", "ana", "hash", now)
	require.NoError(t, err)
	expires := now.AddDate(0, 1, 0)
	a.SubscriptionType = valueobjects.SubscriptionMonthly
	a.SubscriptionExpiresAt = &expires

	av, err := attributevalue.MarshalMap(toAccountItem(a))
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2025-04-14T09:26:53Z"}, av["SubscriptionExpiresAt"])
	assert.NotContains(t, av, "CustomAPIKey")

	var back accountItem
	require.NoError(t, attributevalue.UnmarshalMap(av, &back))
	got := back.toEntity()
	assert.Equal(t, a.Email, got.Email)
	assert.True(t, got.HasActiveSubscription(now))
}

func TestProjectItem_ShareIndexOnlyWhileShared(t *testing.T) {
	p, err := entities.NewProject("acc-1", "Retro", "", now)
	require.NoError(t, err)

	av, err := attributevalue.MarshalMap(toProjectItem(p))
	require.NoError(t, err)
	assert.NotContains(t, av, "GSI2PK")

	token := p.Share(now)
	av, err = attributevalue.MarshalMap(toProjectItem(p))
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "SHARE#" + token}, av["GSI2PK"])
}

func TestExportItem_KeepsOptions(t *testing.T) {
	p, err := entities.NewProject("acc-1", "Retro", "", now)
	require.NoError(t, err)
	e, err := entities.NewExport(p, valueobjects.PPTXOptions{IncludeImages: true}, now)
	require.NoError(t, err)

	item, err := toExportItem(e)
	require.NoError(t, err)
	got, err := item.toEntity()
	require.NoError(t, err)

	assert.Equal(t, valueobjects.FormatPPTX, got.Format)
	assert.Equal(t, valueobjects.PPTXOptions{IncludeImages: true}, got.Options)
}

func TestProjectRepository_Delete_BatchesChildren(t *testing.T) {
	p, err := entities.NewProject("acc-1", "Retro", "", now)
	require.NoError(t, err)
	projectAV, err := attributevalue.MarshalMap(toProjectItem(p))
	require.NoError(t, err)

	children := make([]map[string]types.AttributeValue, 30)
	for i := range children {
		children[i] = key(whiteboardPK(fmt.Sprintf("wb-%d", i)), skMetadata)
	}
	client := &fakeClient{item: projectAV, queryItems: children}
	repo := NewProjectRepository(client, "scribe", zap.NewNop())

	require.NoError(t, repo.Delete(context.Background(), p.ID))

	require.Len(t, client.batches, 2)
	assert.Len(t, client.batches[0], 25)
	assert.Len(t, client.batches[1], 6)
	last := client.batches[1][5].DeleteRequest.Key
	assert.Equal(t, &types.AttributeValueMemberS{Value: projectPK(p.ID)}, last["PK"])
}

func TestPage(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, page(all, 0, 0))
	assert.Equal(t, []int{3, 4}, page(all, 2, 2))
	assert.Equal(t, []int{5}, page(all, 4, 10))
	assert.Empty(t, page(all, 9, 2))
}

func TestWhiteboardRepository_BeginProcessing(t *testing.T) {
	client := &fakeClient{updateResults: []updateResult{{}, conditionFailed()}}
	r := NewWhiteboardRepository(client, "scribe", zap.NewNop())
	staleBefore := now.Add(-entities.ProcessingStaleAfter)

	ok, err := r.BeginProcessing(context.Background(), "wb-1", now, staleBefore)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.BeginProcessing(context.Background(), "wb-1", now, staleBefore)
	require.NoError(t, err)
	assert.False(t, ok, "a failed condition means another run holds the claim")

	require.Len(t, client.updates, 2)
	in := client.updates[0]
	cond := aws.ToString(in.ConditionExpression)
	assert.Contains(t, cond, "attribute_exists")
	assert.Contains(t, cond, " IN ")
	assert.Contains(t, cond, " OR ")
	assert.Contains(t, aws.ToString(in.UpdateExpression), "REMOVE")
	assert.ElementsMatch(t, []string{"PK", "ProcessingStatus", "Progress", "UpdatedAt", "ErrorMessage"}, attributeNames(in))

	var values []string
	for _, v := range in.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			values = append(values, s.Value)
		}
	}
	assert.Contains(t, values, string(entities.WhiteboardUploaded))
	assert.Contains(t, values, string(entities.WhiteboardError))
	assert.Contains(t, values, formatTime(staleBefore))
}
