//go:build !integration

// File: internal/infra/redis/lock_test.go
package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyalty-core/internal/domain"
)

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second tap is rejected while held", func(t *testing.T) {
		fake := newFakeClient()
		locker := NewLocker(fake)
		key := RedeemKey("mem-1")

		token, err := locker.TryLock(ctx, key, 5*time.Second)
		if err != nil {
			t.Fatalf("TryLock: %v", err)
		}
		if token == "" {
			t.Fatal("expected a fencing token")
		}

		if _, err := locker.TryLock(ctx, key, 5*time.Second); !errors.Is(err, domain.ErrRedeemInProgress) {
			t.Errorf("concurrent TryLock err = %v, want ErrRedeemInProgress", err)
		}
	})

	t.Run("unlock releases only with the matching token", func(t *testing.T) {
		fake := newFakeClient()
		locker := NewLocker(fake)
		key := RedeemKey("mem-2")

		token, err := locker.TryLock(ctx, key, 5*time.Second)
		if err != nil {
			t.Fatalf("TryLock: %v", err)
		}

		if err := locker.Unlock(ctx, key, "not-the-token"); err != nil {
			t.Fatalf("Unlock with stale token: %v", err)
		}
		if _, err := locker.TryLock(ctx, key, 5*time.Second); !errors.Is(err, domain.ErrRedeemInProgress) {
			t.Error("a mismatched token must not release the lock")
		}

		if err := locker.Unlock(ctx, key, token); err != nil {
			t.Fatalf("Unlock: %v", err)
		}
		if _, err := locker.TryLock(ctx, key, 5*time.Second); err != nil {
			t.Errorf("relock after release: %v", err)
		}
	})

	t.Run("locks are scoped per membership", func(t *testing.T) {
		fake := newFakeClient()
		locker := NewLocker(fake)

		if _, err := locker.TryLock(ctx, RedeemKey("mem-a"), time.Second); err != nil {
			t.Fatalf("TryLock mem-a: %v", err)
		}
		if _, err := locker.TryLock(ctx, RedeemKey("mem-b"), time.Second); err != nil {
			t.Errorf("TryLock mem-b: %v", err)
		}
	})

	t.Run("backend error is not a held lock", func(t *testing.T) {
		fake := newFakeClient()
		fake.failAll = true
		locker := NewLocker(fake)

		_, err := locker.TryLock(ctx, RedeemKey("mem-c"), time.Second)
		if err == nil {
			t.Fatal("expected an error")
		}
		if errors.Is(err, domain.ErrRedeemInProgress) {
			t.Error("an outage must surface as its own error, not as contention")
		}
	})
}
