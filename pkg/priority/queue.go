package priority

import (
	"context"
	"sync/atomic"
	"time"
)

type Stats struct {
	HighPush int64
	LowPush  int64
	HighPop  int64
	LowPop   int64
}

// Queue is a two-level bounded queue: high items jump ahead of low ones.
type Queue[T any] interface {
	TryPushHigh(item T) bool
	TryPushLow(item T) bool
	Pop(ctx context.Context) (T, bool)
	Stats() Stats
}

// PriorityQueue prefers high items (control frames) but enforces fairness:
// after `fairness` consecutive high pops a pending low item goes first, so
// a control storm cannot starve audio.
type PriorityQueue[T any] struct {
	high     chan T
	low      chan T
	fairness int64

	highStreak atomic.Int64
	highPush   atomic.Int64
	lowPush    atomic.Int64
	highPop    atomic.Int64
	lowPop     atomic.Int64
}

var _ Queue[any] = (*PriorityQueue[any])(nil)

func New[T any](highCap, lowCap, fairness int) *PriorityQueue[T] {
	if fairness <= 0 {
		fairness = 3
	}
	return &PriorityQueue[T]{
		high:     make(chan T, highCap),
		low:      make(chan T, lowCap),
		fairness: int64(fairness),
	}
}

func (q *PriorityQueue[T]) TryPushHigh(item T) bool {
	select {
	case q.high <- item:
		q.highPush.Add(1)
		return true
	default:
		return false
	}
}

func (q *PriorityQueue[T]) TryPushLow(item T) bool {
	select {
	case q.low <- item:
		q.lowPush.Add(1)
		return true
	default:
		return false
	}
}

// Pop blocks, polling both levels, until an item is available or ctx ends.
// A cancelled pop reports ok=false so consumers can exit cleanly.
func (q *PriorityQueue[T]) Pop(ctx context.Context) (T, bool) {
	for {
		if q.highStreak.Load() >= q.fairness {
			if item, ok := q.popLow(); ok {
				return item, true
			}
		}
		if item, ok := q.popHigh(); ok {
			return item, true
		}
		if item, ok := q.popLow(); ok {
			return item, true
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-time.After(time.Millisecond):
		}
	}
}

func (q *PriorityQueue[T]) popHigh() (T, bool) {
	select {
	case item := <-q.high:
		q.highPop.Add(1)
		q.highStreak.Add(1)
		return item, true
	default:
		var zero T
		return zero, false
	}
}

func (q *PriorityQueue[T]) popLow() (T, bool) {
	select {
	case item := <-q.low:
		q.lowPop.Add(1)
		q.highStreak.Store(0)
		return item, true
	default:
		var zero T
		return zero, false
	}
}

func (q *PriorityQueue[T]) Stats() Stats {
	return Stats{
		HighPush: q.highPush.Load(),
		LowPush:  q.lowPush.Load(),
		HighPop:  q.highPop.Load(),
		LowPop:   q.lowPop.Load(),
	}
}
