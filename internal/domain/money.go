package domain

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Money is a decimal amount stored as a DynamoDB number and encoded as a
// JSON number string.
type Money struct {
	decimal.Decimal
}

func NewMoney(v string) (Money, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", v, ErrBadRequest)
	}
	return Money{Decimal: d}, nil
}

// MustMoney is NewMoney for literals known to be valid.
func MustMoney(v string) Money {
	m, err := NewMoney(v)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Mul(qty int) Money {
	return Money{Decimal: m.Decimal.Mul(decimal.NewFromInt(int64(qty)))}
}

func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

func (m Money) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.Decimal.String()}, nil
}

func (m *Money) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		d, err := decimal.NewFromString(v.Value)
		if err != nil {
			return err
		}
		m.Decimal = d
	case *types.AttributeValueMemberS:
		d, err := decimal.NewFromString(v.Value)
		if err != nil {
			return err
		}
		m.Decimal = d
	case *types.AttributeValueMemberNULL:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("unsupported attribute type %T for money", av)
	}
	return nil
}
