package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-pipeline/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return newUserRepo(client, tableName)
}

func newUserRepo(client dynamoAPI, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, now: time.Now}
}

// Upsert writes the profile fields of u keyed by id. An existing cart and
// creation time are preserved, so replaying the same event converges. An
// empty email removes the attribute instead of storing "".
func (r *UserRepo) Upsert(ctx context.Context, u *domain.User) error {
	now, err := attributevalue.Marshal(r.now().UTC())
	if err != nil {
		return err
	}
	values := map[string]types.AttributeValue{
		":name": &types.AttributeValueMemberS{Value: u.Name},
		":img":  &types.AttributeValueMemberS{Value: u.ImageURL},
		":now":  now,
		":cart": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}},
	}
	expr := "SET #name = :name, #img = :img, #upd = :now, " +
		"#crt = if_not_exists(#crt, :now), #cart = if_not_exists(#cart, :cart)"
	if u.Email != "" {
		expr += ", #email = :email"
		values[":email"] = &types.AttributeValueMemberS{Value: u.Email}
	} else {
		expr += " REMOVE #email"
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey(attrUserID, u.UserID),
		UpdateExpression: aws.String(expr),
		ExpressionAttributeNames: map[string]string{
			"#name":  attrName,
			"#email": attrEmail,
			"#img":   attrImageURL,
			"#upd":   attrUpdatedAt,
			"#crt":   attrCreatedAt,
			"#cart":  attrCartItems,
		},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.UserID, err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrUserID, userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("user")
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes the user. Deleting an absent user is not an error.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrUserID, userID),
	})
	return err
}
