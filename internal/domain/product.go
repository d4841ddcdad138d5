package domain

import "time"

const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

type Product struct {
	ProductID   string    `json:"id" dynamodbav:"product_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"` // owner (seller)
	Name        string    `json:"name" dynamodbav:"name"`
	Description string    `json:"description" dynamodbav:"description"`
	Price       Money     `json:"price" dynamodbav:"price"`
	OfferPrice  Money     `json:"offer_price" dynamodbav:"offer_price"`
	Images      []string  `json:"images" dynamodbav:"images"`
	Category    string    `json:"category" dynamodbav:"category"`
	Status      string    `json:"status" dynamodbav:"status"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
}

type UpdateProductStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

type Review struct {
	ReviewID    string    `json:"id" dynamodbav:"review_id"`
	ProductID   string    `json:"product_id" dynamodbav:"product_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	Rating      int       `json:"rating" dynamodbav:"rating"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description" dynamodbav:"description"`
	Images      []string  `json:"images" dynamodbav:"images"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}
