package domain

// Order statuses. Status is free text; only delivered and cancelled are
// terminal for retention purposes.
const (
	OrderStatusPlaced    = "placed"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

type OrderItem struct {
	ProductID string `json:"product_id" dynamodbav:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" dynamodbav:"quantity" validate:"required,min=1"`
}

// Order is written only by batched ingestion. CreatedAt is epoch millis.
type Order struct {
	OrderID   string      `json:"id" dynamodbav:"order_id"`
	UserID    string      `json:"user_id" dynamodbav:"user_id"`
	Items     []OrderItem `json:"items" dynamodbav:"items"`
	Amount    Money       `json:"amount" dynamodbav:"amount"`
	AddressID string      `json:"address_id" dynamodbav:"address_id"`
	Status    string      `json:"status" dynamodbav:"status"`
	CreatedAt int64       `json:"created_at" dynamodbav:"created_at"`
}

// IsTerminal reports whether the order may be removed by retention.
func (o Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}
