package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDrainTimeout is returned when the drainer does not finish inside the
// shutdown window.
var ErrDrainTimeout = errors.New("drain timed out")

var _ Runner = (*LifecycleRunner)(nil)

// LifecycleRunner drives a component through new, running, draining and
// stopped. Run blocks until the context ends or Stop is called; shutdown
// gives the drainer a bounded window before giving up. A runner is
// single-use: once stopped it cannot Run again.
type LifecycleRunner struct {
	state   atomic.Int32
	ctx     context.Context
	cancel  context.CancelFunc
	drainer Drainer
	hooks   Hooks
	timeout time.Duration

	stopOnce sync.Once
	stopErr  error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	lr := &LifecycleRunner{
		ctx:     ctx,
		cancel:  cancel,
		drainer: drainer,
		hooks:   hooks,
		timeout: timeout,
	}
	lr.state.Store(int32(StateNew))
	return lr
}

func (lr *LifecycleRunner) Run(ctx context.Context) error {
	if !lr.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return errors.New("runner is not in a startable state")
	}
	PrintBanner()
	if ctx != nil {
		lr.ctx, lr.cancel = context.WithCancel(ctx)
	}
	if lr.hooks.OnStart != nil {
		lr.hooks.OnStart()
	}
	lr.state.Store(int32(StateRunning))
	<-lr.ctx.Done()
	return lr.shutdown()
}

// Stop initiates shutdown from any state. Safe to call repeatedly.
func (lr *LifecycleRunner) Stop() error {
	lr.cancel()
	return lr.shutdown()
}

func (lr *LifecycleRunner) State() State {
	return State(lr.state.Load())
}

func (lr *LifecycleRunner) shutdown() error {
	lr.stopOnce.Do(func() {
		lr.state.Store(int32(StateDraining))
		lr.stopErr = lr.drain()
		if lr.hooks.OnStop != nil {
			lr.hooks.OnStop()
		}
		lr.state.Store(int32(StateStopped))
	})
	return lr.stopErr
}

func (lr *LifecycleRunner) drain() error {
	if lr.drainer == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- lr.drainer.Drain() }()
	select {
	case err := <-done:
		return err
	case <-time.After(lr.timeout):
		return ErrDrainTimeout
	}
}
