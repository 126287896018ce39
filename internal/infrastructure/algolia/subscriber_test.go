package algolia

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) SaveProducts(ctx context.Context, products []productsync.CommittedProduct) error {
	return m.Called(ctx, products).Error(0)
}

func (m *MockIndexer) DeleteObject(ctx context.Context, objectID string) error {
	return m.Called(ctx, objectID).Error(0)
}

func TestSubscriber_Handle(t *testing.T) {
	created := []productsync.CommittedProduct{{ID: "prod_1"}}
	updated := []productsync.CommittedProduct{{ID: "prod_2"}}
	event := productsync.NewProductsSyncedEvent(uuid.New(), 2, created, updated)

	idx := new(MockIndexer)
	idx.On("SaveProducts", mock.Anything, []productsync.CommittedProduct{{ID: "prod_1"}, {ID: "prod_2"}}).Return(nil).Once()

	s := NewSubscriber(idx, zaptest.NewLogger(t))
	assert.Equal(t, "algolia", s.Name())
	require.NoError(t, s.Handle(context.Background(), event))
	idx.AssertExpectations(t)
}

func TestSubscriber_HandleError(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("SaveProducts", mock.Anything, mock.Anything).Return(errors.New("index down"))

	s := NewSubscriber(idx, nil)
	err := s.Handle(context.Background(), productsync.NewProductsSyncedEvent(uuid.New(), 3, nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 3")
	assert.Contains(t, err.Error(), "index down")
}

func TestSubscriber_HandleRemoval(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("DeleteObject", mock.Anything, "prod_7").Return(nil).Once()
	idx.On("DeleteObject", mock.Anything, "prod_8").Return(nil).Once()

	s := NewSubscriber(idx, zaptest.NewLogger(t))
	assert.Contains(t, s.EventTypes(), productsync.EventTypeProductRemoved)
	require.NoError(t, s.Handle(context.Background(), productsync.NewProductRemovedEvent("7", []string{"prod_7", "prod_8"})))
	idx.AssertExpectations(t)
}

func TestSubscriber_HandleRemovalError(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("DeleteObject", mock.Anything, "prod_7").Return(errors.New("index down"))

	s := NewSubscriber(idx, nil)
	err := s.Handle(context.Background(), productsync.NewProductRemovedEvent("7", []string{"prod_7", "prod_8"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prod_7")
	idx.AssertNotCalled(t, "DeleteObject", mock.Anything, "prod_8")
}
