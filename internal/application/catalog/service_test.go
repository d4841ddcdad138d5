package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
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
func (m *mockProductStore) UpdateStatus(ctx context.Context, productID, status string) error {
	return m.Called(ctx, productID, status).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, name string, payload any) (eventbus.Event, error) {
	args := m.Called(ctx, name, payload)
	return args.Get(0).(eventbus.Event), args.Error(1)
}

func lamp() *domain.Product {
	return &domain.Product{ProductID: "prod_1", UserID: "seller", Name: "Lamp", Status: domain.ProductStatusInactive}
}

func TestSetStatus_ActivatePublishesEvent(t *testing.T) {
	store := &mockProductStore{}
	bus := &mockPublisher{}
	store.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)
	store.On("UpdateStatus", mock.Anything, "prod_1", domain.ProductStatusActive).Return(nil)
	bus.On("Publish", mock.Anything, domain.EventProductActivated, domain.ProductStatusChanged{ProductID: "prod_1"}).
		Return(eventbus.Event{ID: "e1"}, nil)

	p, err := NewService(ServiceDeps{ProductRepo: store, Bus: bus}).
		SetStatus(context.Background(), "seller", "prod_1", domain.ProductStatusActive)

	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusActive, p.Status)
	store.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestSetStatus_DeactivatePublishesEvent(t *testing.T) {
	store := &mockProductStore{}
	bus := &mockPublisher{}
	store.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)
	store.On("UpdateStatus", mock.Anything, "prod_1", domain.ProductStatusInactive).Return(nil)
	bus.On("Publish", mock.Anything, domain.EventProductDeactivated, mock.Anything).Return(eventbus.Event{}, nil)

	_, err := NewService(ServiceDeps{ProductRepo: store, Bus: bus}).
		SetStatus(context.Background(), "seller", "prod_1", domain.ProductStatusInactive)

	require.NoError(t, err)
	bus.AssertExpectations(t)
}

func TestSetStatus_OtherSellerForbidden(t *testing.T) {
	store := &mockProductStore{}
	bus := &mockPublisher{}
	store.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)

	_, err := NewService(ServiceDeps{ProductRepo: store, Bus: bus}).
		SetStatus(context.Background(), "intruder", "prod_1", domain.ProductStatusActive)

	assert.True(t, errors.Is(err, domain.ErrForbidden))
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetStatus_UnknownStatus(t *testing.T) {
	_, err := NewService(ServiceDeps{}).SetStatus(context.Background(), "seller", "prod_1", "archived")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestSetStatus_MissingProduct(t *testing.T) {
	store := &mockProductStore{}
	store.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	_, err := NewService(ServiceDeps{ProductRepo: store}).
		SetStatus(context.Background(), "seller", "ghost", domain.ProductStatusActive)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSetStatus_PublishFailureIsReported(t *testing.T) {
	store := &mockProductStore{}
	bus := &mockPublisher{}
	store.On("Get", mock.Anything, "prod_1").Return(lamp(), nil)
	store.On("UpdateStatus", mock.Anything, "prod_1", domain.ProductStatusActive).Return(nil)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(eventbus.Event{}, eventbus.ErrClosed)

	p, err := NewService(ServiceDeps{ProductRepo: store, Bus: bus}).
		SetStatus(context.Background(), "seller", "prod_1", domain.ProductStatusActive)

	assert.ErrorIs(t, err, eventbus.ErrClosed)
	require.NotNil(t, p)
}
