// Package identity resolves user ids to email addresses, either through the
// identity provider's users API or from the local users table.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/storefront-pipeline/internal/domain"
)

// Resolver maps a user id to an email address. An unknown user or a user
// without an address yields "" and a nil error.
type Resolver interface {
	Email(ctx context.Context, userID string) (string, error)
}

// Client calls GET {baseURL}/v1/users/{id} with a bearer secret key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type providerUser struct {
	ID                    string `json:"id"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (u providerUser) email() string {
	for _, a := range u.EmailAddresses {
		if a.ID != "" && a.ID == u.PrimaryEmailAddressID {
			return a.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (c *Client) Email(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity lookup %s: %w", userID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("identity lookup %s: status %d: %s", userID, resp.StatusCode, body)
	}
	var u providerUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return "", fmt.Errorf("decode identity user %s: %w", userID, err)
	}
	return u.email(), nil
}

type userGetter interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// StoreResolver reads the email synced into the users table. It is used when
// no provider API key is configured.
type StoreResolver struct {
	users userGetter
}

func NewStoreResolver(users userGetter) *StoreResolver {
	return &StoreResolver{users: users}
}

func (r *StoreResolver) Email(ctx context.Context, userID string) (string, error) {
	u, err := r.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

var (
	_ Resolver = (*Client)(nil)
	_ Resolver = (*StoreResolver)(nil)
)
