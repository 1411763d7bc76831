package priority

import (
	"context"
	"testing"
	"time"
)

func TestHighPopsBeforeLow(t *testing.T) {
	q := New[string](4, 4, 3)
	if !q.TryPushLow("low-1") {
		t.Fatal("push low failed")
	}
	if !q.TryPushHigh("high-1") {
		t.Fatal("push high failed")
	}

	v, ok := q.Pop(context.Background())
	if !ok || v != "high-1" {
		t.Fatalf("first pop = %v, want high-1", v)
	}
	v, ok = q.Pop(context.Background())
	if !ok || v != "low-1" {
		t.Fatalf("second pop = %v, want low-1", v)
	}
}

func TestTryPushBounded(t *testing.T) {
	q := New[int](1, 1, 3)
	if !q.TryPushHigh(1) || q.TryPushHigh(2) {
		t.Fatal("high capacity not enforced")
	}
	if !q.TryPushLow(1) || q.TryPushLow(2) {
		t.Fatal("low capacity not enforced")
	}
}

func TestFairnessYieldsToLow(t *testing.T) {
	q := New[int](8, 8, 2)
	for i := 1; i <= 3; i++ {
		q.TryPushHigh(i)
	}
	q.TryPushLow(100)

	first, _ := q.Pop(context.Background())
	second, _ := q.Pop(context.Background())
	third, _ := q.Pop(context.Background())
	if first != 1 || second != 2 {
		t.Fatalf("expected high items first, got %d, %d", first, second)
	}
	// two consecutive high pops exhaust the fairness budget
	if third != 100 {
		t.Fatalf("third pop = %d, want the low item", third)
	}
}

func TestPopReturnsOnCancel(t *testing.T) {
	q := New[int](1, 1, 3)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(ctx)
		done <- ok
	}()
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("cancelled pop must report no item")
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not return after cancel")
	}
}

func TestStatsCount(t *testing.T) {
	q := New[int](4, 4, 3)
	q.TryPushHigh(1)
	q.TryPushLow(2)
	q.Pop(context.Background())
	q.Pop(context.Background())

	s := q.Stats()
	if s.HighPush != 1 || s.LowPush != 1 {
		t.Fatalf("push stats = %+v", s)
	}
	if s.HighPop != 1 || s.LowPop != 1 {
		t.Fatalf("pop stats = %+v", s)
	}
}
