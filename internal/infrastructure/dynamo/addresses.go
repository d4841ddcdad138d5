package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/storefront-pipeline/internal/domain"
)

type AddressRepo struct {
	client    dynamoAPI
	tableName string
}

func NewAddressRepo(client *dynamodb.Client, tableName string) *AddressRepo {
	return &AddressRepo{client: client, tableName: tableName}
}

func (r *AddressRepo) Get(ctx context.Context, addressID string) (*domain.Address, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrAddressID, addressID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("address")
	}
	var a domain.Address
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AddressRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	items, err := queryByOwnerIndex(ctx, r.client, r.tableName, userID)
	if err != nil {
		return 0, fmt.Errorf("query addresses of %s: %w", userID, err)
	}
	return batchDelete(ctx, r.client, r.tableName, keysOf(items, attrAddressID))
}
