package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/pkg/mailtmpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProductStore struct{ mock.Mock }

func (m *mockProductStore) Get(ctx context.Context, productID string) (*domain.Product, error) {
	args := m.Called(ctx, productID)
	if p, _ := args.Get(0).(*domain.Product); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Email(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, to, subject, html string) error {
	return m.Called(ctx, to, subject, html).Error(0)
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) Notification(kind, outcome string) { m.Called(kind, outcome) }

type fixture struct {
	products *mockProductStore
	users    *mockUserStore
	resolver *mockResolver
	mailer   *mockMailer
	metrics  *mockRecorder
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		products: &mockProductStore{},
		users:    &mockUserStore{},
		resolver: &mockResolver{},
		mailer:   &mockMailer{},
		metrics:  &mockRecorder{},
	}
	f.svc = NewService(ServiceDeps{
		ProductRepo: f.products,
		UserRepo:    f.users,
		Resolver:    f.resolver,
		Mailer:      f.mailer,
		Renderer:    mailtmpl.New("https://shop.example", "$"),
		Metrics:     f.metrics,
	})
	return f
}

func event() domain.ReviewAdded {
	return domain.ReviewAdded{ReviewID: "rev_1", ProductID: "prod_1", UserID: "buyer", Rating: 4, Comment: "Bright and sturdy"}
}

func lamp() *domain.Product {
	return &domain.Product{ProductID: "prod_1", UserID: "seller", Name: "Desk Lamp"}
}

func TestNotifyOwner_SendsStarsAndAuthor(t *testing.T) {
	f := newFixture()
	f.products.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)
	f.resolver.On("Email", mock.Anything, "seller").Return("seller@example.com", nil)
	f.users.On("Get", mock.Anything, "buyer").Return(&domain.User{UserID: "buyer", Name: "Grace Hopper"}, nil)
	f.mailer.On("Send", mock.Anything, "seller@example.com", "New 4-star review on Desk Lamp",
		mock.MatchedBy(func(html string) bool {
			return strings.Contains(html, "★★★★☆") && strings.Contains(html, "Grace Hopper") &&
				strings.Contains(html, "Bright and sturdy")
		})).Return(nil)
	f.metrics.On("Notification", "review", OutcomeSent).Return()

	outcome, err := f.svc.NotifyOwner(context.Background(), event())

	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	f.mailer.AssertExpectations(t)
	f.metrics.AssertExpectations(t)
}

func TestNotifyOwner_UnknownAuthorFallsBack(t *testing.T) {
	f := newFixture()
	f.products.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)
	f.resolver.On("Email", mock.Anything, "seller").Return("seller@example.com", nil)
	f.users.On("Get", mock.Anything, "buyer").Return(nil, domain.ErrNotFound)
	f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything,
		mock.MatchedBy(func(html string) bool { return strings.Contains(html, anonymousAuthor) })).Return(nil)
	f.metrics.On("Notification", mock.Anything, mock.Anything).Return()

	_, err := f.svc.NotifyOwner(context.Background(), event())
	require.NoError(t, err)
	f.mailer.AssertExpectations(t)
}

func TestNotifyOwner_ProductGoneShortCircuits(t *testing.T) {
	f := newFixture()
	f.products.On("Get", mock.Anything, "prod_1").Return(nil, domain.ErrNotFound)
	f.metrics.On("Notification", "review", OutcomeProductNotFound).Return()

	outcome, err := f.svc.NotifyOwner(context.Background(), event())

	require.NoError(t, err)
	assert.Equal(t, OutcomeProductNotFound, outcome)
	f.resolver.AssertNotCalled(t, "Email", mock.Anything, mock.Anything)
}

func TestNotifyOwner_OwnerWithoutEmail(t *testing.T) {
	f := newFixture()
	f.products.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)
	f.resolver.On("Email", mock.Anything, "seller").Return("", nil)
	f.metrics.On("Notification", "review", OutcomeOwnerNoEmail).Return()

	outcome, err := f.svc.NotifyOwner(context.Background(), event())

	require.NoError(t, err)
	assert.Equal(t, OutcomeOwnerNoEmail, outcome)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifyOwner_SendFailureIsReturned(t *testing.T) {
	f := newFixture()
	f.products.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)
	f.resolver.On("Email", mock.Anything, "seller").Return("seller@example.com", nil)
	f.users.On("Get", mock.Anything, "buyer").Return(&domain.User{Name: "Grace"}, nil)
	f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	f.metrics.On("Notification", "review", "failed").Return()

	_, err := f.svc.NotifyOwner(context.Background(), event())
	assert.ErrorContains(t, err, "connection reset")
}

func TestNotifyOwner_ResolverErrorIsReturned(t *testing.T) {
	f := newFixture()
	f.products.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)
	f.resolver.On("Email", mock.Anything, "seller").Return("", errors.New("identity 502"))

	_, err := f.svc.NotifyOwner(context.Background(), event())
	assert.ErrorContains(t, err, "identity 502")
}
