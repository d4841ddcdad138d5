package dynamo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testOrders(ids ...string) []domain.Order {
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, domain.Order{
			OrderID: id, UserID: "u1", Amount: domain.MustMoney("10.50"),
			Items:  []domain.OrderItem{{ProductID: "p1", Quantity: 1}},
			Status: domain.OrderStatusPlaced, CreatedAt: 1700000000000,
		})
	}
	return orders
}

func txLen(n int) interface{} {
	return mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool { return len(in.TransactItems) == n })
}

func TestOrderRepo_BulkInsert_SingleTransaction(t *testing.T) {
	api := &mockDynamo{}
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		put := in.TransactItems[0].Put
		amount, ok := put.Item["amount"].(*types.AttributeValueMemberN)
		return len(in.TransactItems) == 3 &&
			aws.ToString(put.ConditionExpression) == "attribute_not_exists(#id)" &&
			ok && amount.Value == "10.5"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	inserted, dup, err := (&OrderRepo{client: api, tableName: "orders"}).BulkInsert(context.Background(), testOrders("a", "b", "c"))

	require.NoError(t, err)
	assert.Equal(t, 3, inserted)
	assert.Equal(t, 0, dup)
	api.AssertExpectations(t)
}

func TestOrderRepo_BulkInsert_DropsExistingAndRetries(t *testing.T) {
	api := &mockDynamo{}
	api.On("TransactWriteItems", mock.Anything, txLen(3)).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		},
	}).Once()
	api.On("TransactWriteItems", mock.Anything, txLen(2)).Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	inserted, dup, err := (&OrderRepo{client: api, tableName: "orders"}).BulkInsert(context.Background(), testOrders("a", "b", "c"))

	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 1, dup)
	api.AssertExpectations(t)
}

func TestOrderRepo_BulkInsert_DuplicatesWithinBatch(t *testing.T) {
	api := &mockDynamo{}
	api.On("TransactWriteItems", mock.Anything, txLen(2)).Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	inserted, dup, err := (&OrderRepo{client: api, tableName: "orders"}).BulkInsert(context.Background(), testOrders("a", "a", "b"))

	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 1, dup)
}

func TestOrderRepo_BulkInsert_OtherCancellationFails(t *testing.T) {
	api := &mockDynamo{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ThrottlingError")},
			{Code: aws.String("None")},
		},
	})

	inserted, _, err := (&OrderRepo{client: api, tableName: "orders"}).BulkInsert(context.Background(), testOrders("a", "b"))

	require.Error(t, err)
	assert.Equal(t, 0, inserted)
}

func TestOrderRepo_BulkInsert_AllExisting(t *testing.T) {
	api := &mockDynamo{}
	api.On("TransactWriteItems", mock.Anything, txLen(1)).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	}).Once()

	inserted, dup, err := (&OrderRepo{client: api, tableName: "orders"}).BulkInsert(context.Background(), testOrders("a"))

	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, dup)
	api.AssertExpectations(t)
}

func TestOrderRepo_DeleteTerminalBefore_FiltersStatus(t *testing.T) {
	api := &mockDynamo{}
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		c := in.ExpressionAttributeValues[":cutoff"].(*types.AttributeValueMemberN)
		d := in.ExpressionAttributeValues[":delivered"].(*types.AttributeValueMemberS)
		x := in.ExpressionAttributeValues[":cancelled"].(*types.AttributeValueMemberS)
		return c.Value == "1600000000000" && d.Value == "delivered" && x.Value == "cancelled" &&
			aws.ToString(in.FilterExpression) == "#crt < :cutoff AND #st IN (:delivered, :cancelled)"
	})).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		{"order_id": s("o1")}, {"order_id": s("o2")},
	}}, nil)
	api.On("BatchWriteItem", mock.Anything, mock.Anything).Return(&dynamodb.BatchWriteItemOutput{}, nil)

	n, err := (&OrderRepo{client: api, tableName: "orders"}).DeleteTerminalBefore(context.Background(), 1600000000000)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
