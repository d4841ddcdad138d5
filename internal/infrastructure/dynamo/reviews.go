package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type ReviewRepo struct {
	client    dynamoAPI
	tableName string
}

func NewReviewRepo(client *dynamodb.Client, tableName string) *ReviewRepo {
	return &ReviewRepo{client: client, tableName: tableName}
}

// DeleteByUser removes every review authored by userID.
func (r *ReviewRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	items, err := queryByOwnerIndex(ctx, r.client, r.tableName, userID)
	if err != nil {
		return 0, fmt.Errorf("query reviews of %s: %w", userID, err)
	}
	return batchDelete(ctx, r.client, r.tableName, keysOf(items, attrReviewID))
}
