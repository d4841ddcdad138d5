package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/storefront-pipeline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func definitionsByName(t *testing.T) map[string]*dynamodb.CreateTableInput {
	t.Helper()
	defs := tableDefinitions(config.DynamoTables{
		Users:         "users",
		Products:      "products",
		Orders:        "orders",
		Reviews:       "reviews",
		Addresses:     "addresses",
		Subscriptions: "subscriptions",
	})
	byName := make(map[string]*dynamodb.CreateTableInput, len(defs))
	for _, d := range defs {
		byName[aws.ToString(d.TableName)] = d
	}
	require.Len(t, byName, 6)
	return byName
}

func indexNames(in *dynamodb.CreateTableInput) []string {
	names := make([]string, 0, len(in.GlobalSecondaryIndexes))
	for _, g := range in.GlobalSecondaryIndexes {
		names = append(names, aws.ToString(g.IndexName))
	}
	return names
}

func TestTableDefinitions_UsersHasNoEmailIndex(t *testing.T) {
	users := definitionsByName(t)["users"]

	assert.Empty(t, users.GlobalSecondaryIndexes)
	require.Len(t, users.AttributeDefinitions, 1)
	assert.Equal(t, attrUserID, aws.ToString(users.AttributeDefinitions[0].AttributeName))
}

func TestTableDefinitions_OrdersIsPlainHashTable(t *testing.T) {
	orders := definitionsByName(t)["orders"]

	assert.Empty(t, orders.GlobalSecondaryIndexes)
	require.Len(t, orders.KeySchema, 1)
	assert.Equal(t, attrOrderID, aws.ToString(orders.KeySchema[0].AttributeName))
}

func TestTableDefinitions_OwnedTablesIndexUserID(t *testing.T) {
	byName := definitionsByName(t)
	for _, name := range []string{"products", "reviews", "addresses", "subscriptions"} {
		assert.Equal(t, []string{indexUserID}, indexNames(byName[name]), name)
	}
}
