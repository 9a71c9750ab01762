package rate_test

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/rate"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	l := rate.NewMemoryLimiter(3, time.Hour)

	for i, wantRemaining := range []int64{2, 1, 0} {
		res, err := l.Allow(ctx, "k")
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d denied", i)
		}
		if res.Remaining != wantRemaining {
			t.Fatalf("hit %d: remaining = %d, want %d", i, res.Remaining, wantRemaining)
		}
	}

	res, err := l.Allow(ctx, "k")
	if err != nil {
		t.Fatalf("over limit: %v", err)
	}
	if res.Allowed {
		t.Fatal("4th hit allowed, want denied")
	}
	if res.Remaining != 0 || res.CurrentHits != 4 {
		t.Fatalf("result = %+v", res)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Hour {
		t.Fatalf("retry after = %v", res.RetryAfter)
	}
}

func TestMemoryLimiter_IndependentKeys(t *testing.T) {
	ctx := context.Background()
	l := rate.NewMemoryLimiter(1, time.Hour)

	if res, _ := l.Allow(ctx, "a"); !res.Allowed {
		t.Fatal("first hit on a denied")
	}
	if res, _ := l.Allow(ctx, "a"); res.Allowed {
		t.Fatal("second hit on a allowed")
	}
	if res, _ := l.Allow(ctx, "b"); !res.Allowed {
		t.Fatal("b shares a's counter")
	}
}

func TestMemoryLimiter_WindowRollover(t *testing.T) {
	ctx := context.Background()
	l := rate.NewMemoryLimiter(1, 50*time.Millisecond)

	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("first hit denied")
	}
	if res, _ := l.Allow(ctx, "k"); res.Allowed {
		t.Fatal("second hit in same window allowed")
	}

	// Sleeping past the window length guarantees a boundary was crossed.
	time.Sleep(60 * time.Millisecond)
	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("hit in fresh window denied")
	}
}
