package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-pipeline/internal/domain"
)

// SubscriptionRepo stores notify-me rows keyed (product_id, user_id). The
// composite key is the uniqueness constraint for a (user, product) pair.
type SubscriptionRepo struct {
	client    dynamoAPI
	tableName string
}

func NewSubscriptionRepo(client *dynamodb.Client, tableName string) *SubscriptionRepo {
	return &SubscriptionRepo{client: client, tableName: tableName}
}

// Create inserts s unless a row for the same pair exists, in which case it
// returns domain.ErrConflict.
func (r *SubscriptionRepo) Create(ctx context.Context, s *domain.Subscription) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": attrProductID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("subscription for product %s: %w", s.ProductID, domain.ErrConflict)
	}
	return err
}

// Delete removes the row for the pair; absent rows are not an error.
func (r *SubscriptionRepo) Delete(ctx context.Context, productID, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(attrProductID, productID, attrUserID, userID),
	})
	return err
}

// ListPending returns the rows of productID still at notified=false.
func (r *SubscriptionRepo) ListPending(ctx context.Context, productID string) ([]domain.Subscription, error) {
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("#pk = :pid"),
		FilterExpression:       aws.String("#n = :f"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrProductID,
			"#n":  attrNotified,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: productID},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query pending subscriptions: %w", err)
	}
	var subs []domain.Subscription
	if err := attributevalue.UnmarshalListOfMaps(items, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	items, err := queryByOwnerIndex(ctx, r.client, r.tableName, userID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions of %s: %w", userID, err)
	}
	subs := []domain.Subscription{}
	if err := attributevalue.UnmarshalListOfMaps(items, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// MarkNotified flips notified to true. A row deleted in the meantime yields
// domain.ErrNotFound instead of being recreated.
func (r *SubscriptionRepo) MarkNotified(ctx context.Context, productID, userID string) error {
	return r.setNotified(ctx, productID, userID, true)
}

// ResetNotified sets notified=false on every row of productID that is
// currently true and returns how many rows were re-armed.
func (r *SubscriptionRepo) ResetNotified(ctx context.Context, productID string) (int, error) {
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("#pk = :pid"),
		FilterExpression:       aws.String("#n = :t"),
		ProjectionExpression:   aws.String("#pk, #uid"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  attrProductID,
			"#uid": attrUserID,
			"#n":   attrNotified,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: productID},
			":t":   &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("query notified subscriptions: %w", err)
	}
	var subs []domain.Subscription
	if err := attributevalue.UnmarshalListOfMaps(items, &subs); err != nil {
		return 0, err
	}
	reset := 0
	for _, s := range subs {
		err := r.setNotified(ctx, s.ProductID, s.UserID, false)
		switch {
		case err == nil:
			reset++
		case isNotFound(err):
			// unsubscribed or swept since the query
		default:
			return reset, err
		}
	}
	return reset, nil
}

func (r *SubscriptionRepo) setNotified(ctx context.Context, productID, userID string, notified bool) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(attrProductID, productID, attrUserID, userID),
		UpdateExpression:    aws.String("SET #n = :v"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#n":  attrNotified,
			"#pk": attrProductID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberBOOL{Value: notified},
		},
	})
	if isConditionFailed(err) {
		return notFound("subscription")
	}
	return err
}

func (r *SubscriptionRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	items, err := queryByOwnerIndex(ctx, r.client, r.tableName, userID)
	if err != nil {
		return 0, fmt.Errorf("query subscriptions of %s: %w", userID, err)
	}
	return batchDelete(ctx, r.client, r.tableName, keysOf(items, attrProductID, attrUserID))
}

// DeleteCreatedBefore removes rows created strictly before cutoff. created_at
// is stored as unix seconds, so a row created exactly at cutoff is kept.
func (r *SubscriptionRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	items, err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		ProjectionExpression: aws.String("#pk, #uid"),
		FilterExpression:     aws.String("#crt < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  attrProductID,
			"#uid": attrUserID,
			"#crt": attrCreatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.Unix(), 10)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("scan expired subscriptions: %w", err)
	}
	return batchDelete(ctx, r.client, r.tableName, keysOf(items, attrProductID, attrUserID))
}
