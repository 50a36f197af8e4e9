package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// CheckoutLockKey builds the redis key guarding one user's checkout.
func CheckoutLockKey(userID int64) string {
	return fmt.Sprintf("checkout:user:%d:lock", userID)
}

// SupplierReconcileLockKey builds the redis key serialising scheduled reconciles.
func SupplierReconcileLockKey(supplierID int64) string {
	return fmt.Sprintf("supplier:%d:reconcile:lock", supplierID)
}

// Locker hands out short-lived redis locks. A nil Locker grants every lock,
// leaving correctness to the database transaction.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewLocker wraps a redis client. ttl bounds how long a crashed holder blocks others.
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: redislock.New(rdb), ttl: ttl}
}

// Acquire obtains key without retrying and returns its release func.
// ErrCheckoutInProgress is returned when another holder owns it.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrCheckoutInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}
