package domain

import "strings"

// Event names carried on the bus.
const (
	EventUserCreated              = "identity/user.created"
	EventUserUpdated              = "identity/user.updated"
	EventUserDeleted              = "identity/user.deleted"
	EventOrderCreated             = "order/created"
	EventOrderConfirmationRequest = "order/confirmation.requested"
	EventProductActivated         = "product/activated"
	EventProductDeactivated       = "product/deactivated"
	EventReviewAdded              = "review/added"
)

// IdentityEmail is one entry of the provider's email address list.
type IdentityEmail struct {
	EmailAddress string `json:"email_address"`
}

// IdentityUserEvent is the payload of the identity provider lifecycle events.
// Deletion events only carry ID.
type IdentityUserEvent struct {
	ID             string          `json:"id" validate:"required"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	PrimaryEmail   string          `json:"primary_email"`
	EmailAddresses []IdentityEmail `json:"email_addresses"`
	AvatarURL      string          `json:"avatar_url"`
}

// Email returns the primary email, falling back to the first listed address.
func (e IdentityUserEvent) Email() string {
	if e.PrimaryEmail != "" {
		return e.PrimaryEmail
	}
	for _, a := range e.EmailAddresses {
		if a.EmailAddress != "" {
			return a.EmailAddress
		}
	}
	return ""
}

// DisplayName joins first and last name; an empty result falls back to the
// local part of the email address.
func (e IdentityUserEvent) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
	if name != "" {
		return name
	}
	email := e.Email()
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// OrderCreated is the payload of order/created. OrderID is an optional
// producer-minted idempotency key.
type OrderCreated struct {
	OrderID         string      `json:"order_id"`
	UserID          string      `json:"user_id" validate:"required"`
	Items           []OrderItem `json:"items" validate:"required,min=1,dive"`
	Amount          Money       `json:"amount"`
	AddressID       string      `json:"address_id" validate:"required"`
	CreatedAtMillis int64       `json:"created_at" validate:"required,gt=0"`
}

// OrderConfirmation carries the same data as OrderCreated.
type OrderConfirmation OrderCreated

type ProductStatusChanged struct {
	ProductID string `json:"product_id" validate:"required"`
}

type ReviewAdded struct {
	ReviewID  string `json:"review_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
	UserID    string `json:"user_id" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment"`
}
