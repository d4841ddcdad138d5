package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-pipeline/internal/domain"
)

// maxUnprocessedRetries bounds how often a BatchWriteItem remainder is resent.
const maxUnprocessedRetries = 5

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET expression.
// Fields are emitted in sorted order so the expression is deterministic.
func buildUpdateExpr(updates map[string]interface{}) (updateExpr, error) {
	if len(updates) == 0 {
		return updateExpr{}, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := updateExpr{
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	parts := make([]string, 0, len(keys))
	for i, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(updates[k])
		if err != nil {
			return updateExpr{}, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Names[nameKey] = k
		ue.Values[valueKey] = av
		parts = append(parts, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}
	ue.Expr = "SET " + strings.Join(parts, ", ")
	return ue, nil
}

// isConditionFailed reports whether err is a failed ConditionExpression.
func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// queryAll runs a Query to completion, following LastEvaluatedKey.
func queryAll(ctx context.Context, api dynamoAPI, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := api.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// scanAll runs a Scan to completion, following LastEvaluatedKey.
func scanAll(ctx context.Context, api dynamoAPI, in *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := api.Scan(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// queryByOwnerIndex returns every item whose user_id matches, via user_id-index.
func queryByOwnerIndex(ctx context.Context, api dynamoAPI, table, userID string) ([]map[string]types.AttributeValue, error) {
	return queryAll(ctx, api, &dynamodb.QueryInput{
		TableName:              aws.String(table),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
}

// keysOf projects items down to their primary key attributes.
func keysOf(items []map[string]types.AttributeValue, keyAttrs ...string) []map[string]types.AttributeValue {
	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		k := make(map[string]types.AttributeValue, len(keyAttrs))
		for _, a := range keyAttrs {
			if v, ok := item[a]; ok {
				k[a] = v
			}
		}
		if len(k) == len(keyAttrs) {
			keys = append(keys, k)
		}
	}
	return keys
}

// batchDelete removes keys in chunks of 25, resending unprocessed requests.
// Deleting an absent key is a no-op in DynamoDB, so the call is idempotent.
// Returns the number of delete requests acknowledged.
func batchDelete(ctx context.Context, api dynamoAPI, table string, keys []map[string]types.AttributeValue) (int, error) {
	deleted := 0
	for start := 0; start < len(keys); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(keys) {
			end = len(keys)
		}
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}
		n, err := writeBatch(ctx, api, table, reqs)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func writeBatch(ctx context.Context, api dynamoAPI, table string, reqs []types.WriteRequest) (int, error) {
	pending := reqs
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt > maxUnprocessedRetries {
			return len(reqs) - len(pending), fmt.Errorf("batch write %s: %d requests left unprocessed", table, len(pending))
		}
		out, err := api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{table: pending},
		})
		if err != nil {
			return len(reqs) - len(pending), err
		}
		pending = out.UnprocessedItems[table]
	}
	return len(reqs), nil
}

func notFound(entity string) error {
	return fmt.Errorf("%s not found: %w", entity, domain.ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
