package gateway

import (
	"testing"
	"time"
)

func TestTokenBucketLimiterBurstThenDelay(t *testing.T) {
	l := NewTokenBucketLimiter(50, 2)

	start := time.Now()
	l.Wait()
	l.Wait()
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Fatalf("burst tokens should not wait, took %v", elapsed)
	}

	// Bucket drained: the third take waits for a refill (~20ms at 50/s).
	start = time.Now()
	l.Wait()
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("expected refill wait, took %v", elapsed)
	}
}

func TestTokenBucketLimiterDefaults(t *testing.T) {
	l := NewTokenBucketLimiter(0, 0)
	if l.perSec != 1 || l.capacity != 1 {
		t.Fatalf("expected clamped defaults, got rate=%v cap=%v", l.perSec, l.capacity)
	}
}
