package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/quotegate/pkg/store"
)

// ErrStoreDown is returned by every FailingStore operation.
var ErrStoreDown = errors.New("store unavailable")

// NewMiniRedis starts an in-memory Redis for unit tests and returns it with a
// RedisStore bound to it. Both are cleaned up with the test.
// Use mr.FastForward to expire keys without sleeping.
func NewMiniRedis(t *testing.T) (*miniredis.Miniredis, *store.RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
	})

	return mr, store.NewRedisStore(client)
}

// FailingStore is a store.Store whose every call fails, used to exercise
// fail-open and cache-miss degradation paths.
type FailingStore struct{}

var _ store.Store = FailingStore{}

func (FailingStore) Incr(context.Context, string) (int64, error) { return 0, ErrStoreDown }
func (FailingStore) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, ErrStoreDown
}
func (FailingStore) TTL(context.Context, string) (int64, error)   { return store.NoExpiry, ErrStoreDown }
func (FailingStore) Get(context.Context, string) ([]byte, error)   { return nil, ErrStoreDown }
func (FailingStore) SetEX(context.Context, string, []byte, time.Duration) error {
	return ErrStoreDown
}
func (FailingStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, ErrStoreDown
}
func (FailingStore) Exists(context.Context, string) (bool, error) { return false, ErrStoreDown }
func (FailingStore) Del(context.Context, string) error            { return ErrStoreDown }
func (FailingStore) FlushAll(context.Context) error               { return ErrStoreDown }
func (FailingStore) Ping(context.Context) error                   { return ErrStoreDown }
