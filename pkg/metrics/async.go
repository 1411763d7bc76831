package metrics

import (
	"sync"
	"sync/atomic"
)

// AsyncObserver decouples event producers from a possibly slow sink (file
// writers, loggers). A single goroutine forwards events; when the buffer
// is full the event is counted and discarded rather than blocking the
// audio path.
type AsyncObserver struct {
	sink    Observer
	queue   chan MetricsEvent
	done    chan struct{}
	dropped atomic.Int64
	closing atomic.Bool
	once    sync.Once
}

func NewAsyncObserver(sink Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		sink:  sink,
		queue: make(chan MetricsEvent, buffer),
		done:  make(chan struct{}),
	}
	go a.forward()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	if a == nil || a.closing.Load() {
		return
	}
	select {
	case a.queue <- ev:
	default:
		a.dropped.Add(1)
	}
}

// Dropped reports events discarded because the buffer was full.
func (a *AsyncObserver) Dropped() int64 { return a.dropped.Load() }

// Close flushes buffered events into the sink and stops the forwarder.
// Safe to call more than once.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.closing.Store(true)
		close(a.queue)
		<-a.done
	})
}

func (a *AsyncObserver) forward() {
	defer close(a.done)
	for ev := range a.queue {
		a.sink.RecordEvent(ev)
	}
}
