package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return New(client, cfg), mr
}

func TestLimiterBlocksAfterMaxFailures(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "ada@example.com", ""); err != nil {
			t.Fatalf("attempt %d blocked early: %v", i, err)
		}
		if err := l.RecordFailure(ctx, "ada@example.com", ""); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	if err := l.CheckLogin(ctx, "ada@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "grace@example.com", ""); err != nil {
		t.Fatalf("other email must not be throttled: %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Cooldown: time.Minute})
	ctx := context.Background()

	if err := l.RecordFailure(ctx, "ada@example.com", ""); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if err := l.CheckLogin(ctx, "ada@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "ada@example.com", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestLimiterResetClearsEmailOnly(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute, PerIP: true})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.RecordFailure(ctx, "ada@example.com", "10.0.0.1"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if n, _ := l.Attempts(ctx, "ada@example.com"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}

	if err := l.ResetLogin(ctx, "ada@example.com"); err != nil {
		t.Fatalf("ResetLogin failed: %v", err)
	}
	if n, _ := l.Attempts(ctx, "ada@example.com"); n != 0 {
		t.Fatalf("expected reset counter, got %d", n)
	}
	if err := l.CheckLogin(ctx, "grace@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ip counter to survive reset, got %v", err)
	}
}

func TestLimiterReportsBackendFailure(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "ada@example.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
