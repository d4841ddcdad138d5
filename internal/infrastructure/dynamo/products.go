package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/storefront-pipeline/internal/domain"
)

type ProductRepo struct {
	client    dynamoAPI
	tableName string
}

func NewProductRepo(client *dynamodb.Client, tableName string) *ProductRepo {
	return &ProductRepo{client: client, tableName: tableName}
}

func (r *ProductRepo) Get(ctx context.Context, productID string) (*domain.Product, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrProductID, productID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("product")
	}
	var p domain.Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus sets the product status; a missing product yields ErrNotFound.
func (r *ProductRepo) UpdateStatus(ctx context.Context, productID, status string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{attrStatus: status})
	if err != nil {
		return err
	}
	ue.Names["#pk"] = attrProductID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrProductID, productID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return notFound("product")
	}
	return err
}

// DeleteByOwner removes every product listed by userID.
func (r *ProductRepo) DeleteByOwner(ctx context.Context, userID string) (int, error) {
	items, err := queryByOwnerIndex(ctx, r.client, r.tableName, userID)
	if err != nil {
		return 0, fmt.Errorf("query products of %s: %w", userID, err)
	}
	return batchDelete(ctx, r.client, r.tableName, keysOf(items, attrProductID))
}
