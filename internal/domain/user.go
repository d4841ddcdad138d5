package domain

import "time"

// User mirrors an identity-provider account. UserID is the provider's id.
type User struct {
	UserID    string         `json:"id" dynamodbav:"user_id"`
	Name      string         `json:"name" dynamodbav:"name"`
	Email     string         `json:"email" dynamodbav:"email"`
	ImageURL  string         `json:"image_url" dynamodbav:"image_url"`
	CartItems map[string]int `json:"cart_items" dynamodbav:"cart_items"` // product id -> quantity
	CreatedAt time.Time      `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time      `json:"updated" dynamodbav:"updated_at"`
}

// Address is a shipping address owned by a user.
type Address struct {
	AddressID   string `json:"id" dynamodbav:"address_id"`
	UserID      string `json:"user_id" dynamodbav:"user_id"`
	FullName    string `json:"full_name" dynamodbav:"full_name"`
	PhoneNumber string `json:"phone_number" dynamodbav:"phone_number"`
	Area        string `json:"area" dynamodbav:"area"`
	City        string `json:"city" dynamodbav:"city"`
	State       string `json:"state" dynamodbav:"state"`
	PinCode     string `json:"pin_code" dynamodbav:"pin_code"`
}
