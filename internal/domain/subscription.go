package domain

import "time"

// Subscription is a "notify me when available" request.
// PK: product_id, SK: user_id. The key enforces one row per pair.
type Subscription struct {
	ProductID string    `json:"product_id" dynamodbav:"product_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Notified  bool      `json:"notified" dynamodbav:"notified"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at,unixtime"`
}

type SubscribeRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}
