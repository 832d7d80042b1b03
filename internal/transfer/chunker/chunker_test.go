package chunker

import (
	"testing"
	"time"
)

func TestNextClampsToBounds(t *testing.T) {
	if got := Next(1000, 0, 10*time.Second); got != MinChunk {
		t.Fatalf("expected clamp to MinChunk, got %d", got)
	}
	if got := Next(MaxChunk, 100000, 0); got != MaxChunk {
		t.Fatalf("expected clamp to MaxChunk, got %d", got)
	}
}

func TestNextMonotonicWithSpeed(t *testing.T) {
	slow := Next(20000, 100, time.Second)
	fast := Next(20000, 10000, time.Second)
	if fast <= slow {
		t.Fatalf("expected higher speed to grow chunk size more: slow=%d fast=%d", slow, fast)
	}
}

func TestNextPenalizesLongDuration(t *testing.T) {
	quick := Next(20000, 1000, 100*time.Millisecond)
	slow := Next(20000, 1000, 2*time.Second)
	if slow >= quick {
		t.Fatalf("expected longer duration to shrink chunk size: quick=%d slow=%d", quick, slow)
	}
}

func TestNextDurationFloorAtTenPercent(t *testing.T) {
	// Beta*T with T large would drive the duration factor deeply negative;
	// it must floor at 0.1 rather than go negative or zero. With speed factor
	// 2 the floored result 50000*2*0.1 = 10000 stays above MinChunk.
	got := Next(50000, 2000, 100*time.Second)
	if got != 10000 {
		t.Fatalf("expected floor-limited result of 10000, got %d", got)
	}
}
