package shared

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLockerRejectsSecondHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewLocker(client, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, CheckoutLockKey(42))
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, CheckoutLockKey(42))
	require.ErrorIs(t, err, ErrCheckoutInProgress)

	other, err := locker.Acquire(ctx, CheckoutLockKey(43))
	require.NoError(t, err)
	other()

	release()
	again, err := locker.Acquire(ctx, CheckoutLockKey(42))
	require.NoError(t, err)
	again()
}

func TestNilLockerGrants(t *testing.T) {
	var locker *Locker
	release, err := locker.Acquire(context.Background(), CheckoutLockKey(1))
	require.NoError(t, err)
	release()
}
