package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/provider"
)

type fakeStore struct {
	values   map[string]string
	ttls     map[string]time.Duration
	getErr   error
	setErr   error
	getCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	s.getCalls++
	if s.getErr != nil {
		return redis.NewStringResult("", s.getErr)
	}
	value, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (s *fakeStore) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if s.setErr != nil {
		return redis.NewStatusResult("", s.setErr)
	}
	switch v := value.(type) {
	case []byte:
		s.values[key] = string(v)
	case string:
		s.values[key] = v
	}
	s.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

type fakeFetcher struct {
	orders map[string]*provider.Order
	err    error
	calls  int
}

func (f *fakeFetcher) GetOrder(_ context.Context, orderID string) (*provider.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, provider.ErrOrderNotFound
	}
	return order, nil
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestOrderCacheFetchesOnceThenServesFromStore(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{orders: map[string]*provider.Order{"ord-1": {ID: "ord-1", ReferenceID: "42"}}}
	c := NewOrderCache(store, fetcher, time.Minute, testLogger())

	first, err := c.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "42", first.ReferenceID)

	second, err := c.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "42", second.ReferenceID)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, time.Minute, store.ttls[orderKeyPrefix+"ord-1"])
}

func TestOrderCacheFallsBackWhenStoreFails(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	fetcher := &fakeFetcher{orders: map[string]*provider.Order{"ord-1": {ID: "ord-1", ReferenceID: "7"}}}
	c := NewOrderCache(store, fetcher, 0, testLogger())

	order, err := c.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "7", order.ReferenceID)
	assert.Equal(t, 1, fetcher.calls)
}

func TestOrderCacheDoesNotStoreFetchErrors(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{orders: map[string]*provider.Order{}}
	c := NewOrderCache(store, fetcher, time.Minute, testLogger())

	_, err := c.GetOrder(context.Background(), "missing")
	require.ErrorIs(t, err, provider.ErrOrderNotFound)
	assert.Empty(t, store.values)
}
