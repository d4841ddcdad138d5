package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-pipeline/internal/domain"
)

const reasonConditionalCheckFailed = "ConditionalCheckFailed"

type OrderRepo struct {
	client    dynamoAPI
	tableName string
}

func NewOrderRepo(client *dynamodb.Client, tableName string) *OrderRepo {
	return &OrderRepo{client: client, tableName: tableName}
}

// BulkInsert writes orders in transactions of up to 100 items. Each put is
// conditional on the order id being new; orders whose id already exists are
// counted as duplicates and the rest of the transaction is re-submitted.
func (r *OrderRepo) BulkInsert(ctx context.Context, orders []domain.Order) (inserted, duplicates int, err error) {
	seen := make(map[string]struct{}, len(orders))
	unique := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.OrderID]; ok {
			duplicates++
			continue
		}
		seen[o.OrderID] = struct{}{}
		unique = append(unique, o)
	}

	for start := 0; start < len(unique); start += transactLimit {
		end := start + transactLimit
		if end > len(unique) {
			end = len(unique)
		}
		n, d, err := r.insertChunk(ctx, unique[start:end])
		inserted += n
		duplicates += d
		if err != nil {
			return inserted, duplicates, err
		}
	}
	return inserted, duplicates, nil
}

func (r *OrderRepo) insertChunk(ctx context.Context, orders []domain.Order) (int, int, error) {
	items := make([]types.TransactWriteItem, 0, len(orders))
	for _, o := range orders {
		av, err := attributevalue.MarshalMap(o)
		if err != nil {
			return 0, 0, fmt.Errorf("marshal order %s: %w", o.OrderID, err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:                aws.String(r.tableName),
			Item:                     av,
			ConditionExpression:      aws.String("attribute_not_exists(#id)"),
			ExpressionAttributeNames: map[string]string{"#id": attrOrderID},
		}})
	}

	duplicates := 0
	for len(items) > 0 {
		_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return len(items), duplicates, nil
		}
		remaining, dup, ok := dropExisting(items, err)
		if !ok {
			return 0, duplicates, fmt.Errorf("insert orders: %w", err)
		}
		duplicates += dup
		items = remaining
	}
	return 0, duplicates, nil
}

// dropExisting removes the items rejected by their condition check. ok is
// false when the transaction failed for any other reason.
func dropExisting(items []types.TransactWriteItem, err error) (remaining []types.TransactWriteItem, dropped int, ok bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || len(tce.CancellationReasons) != len(items) {
		return nil, 0, false
	}
	for i, reason := range tce.CancellationReasons {
		code := aws.ToString(reason.Code)
		switch code {
		case "", "None":
			remaining = append(remaining, items[i])
		case reasonConditionalCheckFailed:
			dropped++
		default:
			return nil, 0, false
		}
	}
	if dropped == 0 {
		return nil, 0, false
	}
	return remaining, dropped, true
}

// DeleteTerminalBefore removes delivered or cancelled orders created strictly
// before cutoffMillis. Orders in any other status are never touched.
func (r *OrderRepo) DeleteTerminalBefore(ctx context.Context, cutoffMillis int64) (int, error) {
	items, err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		ProjectionExpression: aws.String("#id"),
		FilterExpression:     aws.String("#crt < :cutoff AND #st IN (:delivered, :cancelled)"),
		ExpressionAttributeNames: map[string]string{
			"#id":  attrOrderID,
			"#crt": attrCreatedAt,
			"#st":  attrStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff":    &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoffMillis, 10)},
			":delivered": &types.AttributeValueMemberS{Value: domain.OrderStatusDelivered},
			":cancelled": &types.AttributeValueMemberS{Value: domain.OrderStatusCancelled},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("scan expired orders: %w", err)
	}
	return batchDelete(ctx, r.client, r.tableName, keysOf(items, attrOrderID))
}
