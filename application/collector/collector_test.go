package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	"cms-backend/infrastructure/persistence/memory"
	pkgerrors "cms-backend/pkg/errors"
)

// MockStore is a mock implementation of ports.KeyValueStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key keyspace.Key) (keyspace.Item, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(keyspace.Item), args.Error(1)
}

func (m *MockStore) Put(ctx context.Context, item keyspace.Item) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key keyspace.Key) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStore) QueryPrefix(ctx context.Context, input ports.QueryInput) (ports.Page, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(ports.Page), args.Error(1)
}

func (m *MockStore) TransactWrite(ctx context.Context, ops []ports.WriteOp) error {
	return m.Called(ctx, ops).Error(0)
}

func (m *MockStore) BatchWrite(ctx context.Context, ops []ports.WriteOp) error {
	return m.Called(ctx, ops).Error(0)
}

func scope(t *testing.T) keyspace.Scope {
	t.Helper()
	s, err := keyspace.Tenant("t1")
	require.NoError(t, err)
	return s
}

func items(t *testing.T, ids ...string) []keyspace.Item {
	t.Helper()
	out := make([]keyspace.Item, 0, len(ids))
	for _, id := range ids {
		key, err := keyspace.ProductKey(scope(t), id)
		require.NoError(t, err)
		out = append(out, keyspace.NewItem(key, map[string]any{"id": id}))
	}
	return out
}

func withCursor(cursor string) interface{} {
	return mock.MatchedBy(func(in ports.QueryInput) bool { return in.Cursor == cursor })
}

func ids(list []keyspace.Item) []string {
	out := make([]string, 0, len(list))
	for _, it := range list {
		out = append(out, it.ID())
	}
	return out
}

func TestCollect_FollowsCursors(t *testing.T) {
	// Arrange
	store := new(MockStore)
	store.On("QueryPrefix", mock.Anything, withCursor("")).Return(ports.Page{Items: items(t, "a", "b"), NextCursor: "c1"}, nil).Once()
	store.On("QueryPrefix", mock.Anything, withCursor("c1")).Return(ports.Page{Items: items(t, "c"), NextCursor: "c2"}, nil).Once()
	store.On("QueryPrefix", mock.Anything, withCursor("c2")).Return(ports.Page{Items: items(t, "d")}, nil).Once()

	var observedPages int
	c := New(store, zap.NewNop(), WithPageObserver(func(_ string, pages int, _ error) { observedPages = pages }))

	// Act
	got, err := c.Collect(context.Background(), scope(t), "PRODUCT#")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))
	assert.Equal(t, 3, observedPages)
	store.AssertExpectations(t)
}

func TestCollect_PageFailureReturnsNoPartialData(t *testing.T) {
	// Arrange
	store := new(MockStore)
	store.On("QueryPrefix", mock.Anything, withCursor("")).Return(ports.Page{Items: items(t, "a"), NextCursor: "c1"}, nil).Once()
	store.On("QueryPrefix", mock.Anything, withCursor("c1")).Return(ports.Page{}, errors.New("throttled")).Once()
	c := New(store, zap.NewNop())

	// Act
	got, err := c.Collect(context.Background(), scope(t), "PRODUCT#")

	// Assert
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransient(err))
	store.AssertExpectations(t)
}

func TestCollect_PageCap(t *testing.T) {
	store := new(MockStore)
	for i := 0; i < 3; i++ {
		store.On("QueryPrefix", mock.Anything, withCursor(cursorN(i))).
			Return(ports.Page{Items: items(t, fmt.Sprintf("p%d", i)), NextCursor: cursorN(i + 1)}, nil).Once()
	}
	c := New(store, zap.NewNop(), WithMaxPages(3))

	got, err := c.Collect(context.Background(), scope(t), "PRODUCT#")

	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPageLimitExceeded))
	store.AssertNumberOfCalls(t, "QueryPrefix", 3)
}

func cursorN(i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("c%d", i)
}

func TestCollect_RepeatedCursor(t *testing.T) {
	store := new(MockStore)
	store.On("QueryPrefix", mock.Anything, withCursor("")).Return(ports.Page{Items: items(t, "a"), NextCursor: "same"}, nil).Once()
	store.On("QueryPrefix", mock.Anything, withCursor("same")).Return(ports.Page{Items: items(t, "b"), NextCursor: "same"}, nil).Once()
	c := New(store, zap.NewNop())

	_, err := c.Collect(context.Background(), scope(t), "PRODUCT#")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCursorLoop))
}

func TestScan_StopsEarly(t *testing.T) {
	store := new(MockStore)
	store.On("QueryPrefix", mock.Anything, withCursor("")).Return(ports.Page{Items: items(t, "a", "b"), NextCursor: "c1"}, nil).Once()
	c := New(store, zap.NewNop())

	var seen []string
	for item, err := range c.Scan(context.Background(), scope(t), "PRODUCT#") {
		require.NoError(t, err)
		seen = append(seen, item.ID())
		break
	}

	assert.Equal(t, []string{"a"}, seen)
	store.AssertNumberOfCalls(t, "QueryPrefix", 1)
}

func TestCollect_MemoryStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(zap.NewNop(), memory.WithPageSize(3))
	for _, it := range items(t, "e", "d", "c", "b", "a", "f", "g") {
		require.NoError(t, store.Put(ctx, it))
	}
	c := New(store, zap.NewNop())

	got, err := c.Collect(ctx, scope(t), "PRODUCT#", "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, ids(got))

	// A fresh scan starts over
	again, err := c.Collect(ctx, scope(t), "PRODUCT#")
	require.NoError(t, err)
	assert.Equal(t, ids(got), ids(again))
}

func TestPage_PassesAppErrorsThrough(t *testing.T) {
	store := new(MockStore)
	store.On("QueryPrefix", mock.Anything, mock.Anything).Return(ports.Page{}, pkgerrors.NewValidationError("bad cursor"))
	c := New(store, zap.NewNop())

	_, err := c.Page(context.Background(), scope(t), "PRODUCT#", "zzz", nil)
	assert.True(t, pkgerrors.IsValidation(err))
}
